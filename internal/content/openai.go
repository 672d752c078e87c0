package content

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAISpeech narrates stories with the OpenAI text-to-speech endpoint
type OpenAISpeech struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// NewOpenAISpeech creates a narrator using tts-1 with the nova voice
func NewOpenAISpeech(apiKey string, log *zap.Logger) *OpenAISpeech {
	log.Info("OpenAI speech client initialized", zap.String("model", string(openai.TTSModel1)))
	return &OpenAISpeech{client: openai.NewClient(apiKey), voice: openai.VoiceNova}
}

// GenerateJSON is served by the Gemini provider
func (o *OpenAISpeech) GenerateJSON(ctx context.Context, req Request) (string, error) {
	return "", ErrNotSupported
}

// GenerateImage is served by the Gemini provider
func (o *OpenAISpeech) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return nil, "", ErrNotSupported
}

// SynthesizeSpeech returns an mp3 stream; the caller closes it
func (o *OpenAISpeech) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech: %w", err)
	}
	return resp, nil
}

// AnalyzeAudio is served by the Gemini provider
func (o *OpenAISpeech) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error) {
	return "", ErrNotSupported
}
