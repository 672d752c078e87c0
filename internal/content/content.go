// Package content wraps the language model used for text, image, speech and audio understanding.
package content

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotSupported is returned by a provider that does not offer a capability
	ErrNotSupported = errors.New("capability not supported by provider")
	// ErrEmptyResponse is returned when the model answered with nothing usable
	ErrEmptyResponse = errors.New("empty model response")
)

// Request is a single structured-output call
type Request struct {
	// Agent names the caller for logs and metrics
	Agent string
	// System is optional steering text sent ahead of the prompt
	System string
	Prompt string
}

// Service is the content generation boundary every agent talks to
type Service interface {
	// GenerateJSON returns the model's JSON text with code fences removed
	GenerateJSON(ctx context.Context, req Request) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
	SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error)
	AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error)
}
