package content

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini serves text, image and audio understanding through the Gemini API
type Gemini struct {
	client     *genai.Client
	model      string
	imageModel string
	log        *zap.Logger
}

// NewGemini creates a client for the given API key
func NewGemini(ctx context.Context, apiKey, model, imageModel string, log *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	log.Info("Gemini client initialized", zap.String("model", model), zap.String("image_model", imageModel))
	return &Gemini{client: client, model: model, imageModel: imageModel, log: log}, nil
}

// GenerateJSON asks for an application/json response
func (g *Gemini) GenerateJSON(ctx context.Context, req Request) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		genConfig)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateImage returns the first inline image part of the response
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		genConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate image: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, part.InlineData.MIMEType, nil
			}
		}
	}
	return nil, "", ErrEmptyResponse
}

// SynthesizeSpeech is served by the OpenAI provider
func (g *Gemini) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	return nil, ErrNotSupported
}

// AnalyzeAudio sends the recording inline together with the instruction
func (g *Gemini) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromBytes(audio, mimeType),
	}
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		genConfig)
	if err != nil {
		return "", fmt.Errorf("failed to analyze audio: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
