package content

import (
	"context"
	"io"
)

// Composite routes each capability to the provider that serves it.
// A nil Speech provider falls back to Text for narration.
type Composite struct {
	Text   Service
	Speech Service
}

func (c *Composite) GenerateJSON(ctx context.Context, req Request) (string, error) {
	return c.Text.GenerateJSON(ctx, req)
}

func (c *Composite) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return c.Text.GenerateImage(ctx, prompt)
}

func (c *Composite) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	if c.Speech == nil {
		return c.Text.SynthesizeSpeech(ctx, text)
	}
	return c.Speech.SynthesizeSpeech(ctx, text)
}

func (c *Composite) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error) {
	return c.Text.AnalyzeAudio(ctx, audio, mimeType, instruction)
}
