// Package media turns finished stories into narration and illustration files.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
)

// maxNarrationRunes is the input limit of the speech endpoint
const maxNarrationRunes = 4096

// RecordingPrefix starts the file name of every stored voice recording.
// Those files are private and never served from the public uploads route.
const RecordingPrefix = "voice"

// Service produces story audio and images and stores uploaded recordings
type Service struct {
	content  content.Service
	fallback *GoogleNarrator
	store    *Store
	log      *zap.Logger
}

// NewService wires the media service. fallback may be nil to disable the secondary narrator.
func NewService(svc content.Service, fallback *GoogleNarrator, store *Store, log *zap.Logger) *Service {
	return &Service{content: svc, fallback: fallback, store: store, log: log.Named("media")}
}

// Narrate synthesises the story and returns the audio URI
func (s *Service) Narrate(ctx context.Context, title, body string) (string, error) {
	text := truncateRunes(strings.TrimSpace(title+". "+body), maxNarrationRunes)

	audio, err := s.content.SynthesizeSpeech(ctx, text)
	if err == nil {
		defer audio.Close()
		return s.save("audio", "story_audio", ".mp3", audio)
	}
	if s.fallback == nil {
		metrics.MediaFailures.WithLabelValues("audio").Inc()
		return "", fmt.Errorf("failed to synthesize speech: %w", err)
	}

	s.log.Warn("primary narrator failed, using fallback", zap.Error(err))
	data, ferr := s.fallback.Synthesize(ctx, text)
	if ferr != nil {
		metrics.MediaFailures.WithLabelValues("audio").Inc()
		return "", fmt.Errorf("failed to synthesize speech: %w (fallback: %v)", err, ferr)
	}
	return s.save("audio", "story_audio", ".mp3", bytes.NewReader(data))
}

// Illustrate generates a cover image and returns its URI
func (s *Service) Illustrate(ctx context.Context, title string, culturalElements []string) (string, error) {
	prompt := fmt.Sprintf(`Create a beautiful, child-friendly illustration for a Turkish children's story titled %q.
Include these cultural elements: %s.
Style: colorful, warm, family-friendly, Turkish cultural themes. No text in the image.`,
		content.Sanitize(title), content.Sanitize(strings.Join(culturalElements, ", ")))

	data, mimeType, err := s.content.GenerateImage(ctx, prompt)
	if err != nil {
		metrics.MediaFailures.WithLabelValues("image").Inc()
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	ext := ExtensionFor(mimeType)
	if ext == ".bin" {
		ext = ".png"
	}
	return s.save("image", "story_image", ext, bytes.NewReader(data))
}

func (s *Service) save(kind, prefix, ext string, r io.Reader) (string, error) {
	uri, err := s.store.Save(prefix, ext, r)
	if err != nil {
		metrics.MediaFailures.WithLabelValues(kind).Inc()
		return "", err
	}
	return uri, nil
}

// SaveRecording stores an uploaded voice message
func (s *Service) SaveRecording(r io.Reader, mimeType string) (string, error) {
	return s.save("voice", RecordingPrefix, ExtensionFor(mimeType), r)
}

// OpenRecording returns the file behind a recording URI
func (s *Service) OpenRecording(uri string) (io.ReadSeekCloser, error) {
	f, err := s.store.Open(uri)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove deletes stored media. Empty URIs are skipped.
func (s *Service) Remove(uris ...string) {
	for _, uri := range uris {
		if uri == "" {
			continue
		}
		if err := s.store.Delete(uri); err != nil {
			s.log.Warn("failed to remove media file", zap.String("uri", uri), zap.Error(err))
		}
	}
}

func truncateRunes(s string, limit int) string {
	if len([]rune(s)) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
