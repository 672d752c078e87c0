package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	googleTTSURL      = "https://translate.google.com/translate_tts"
	ttsRequestTimeout = 10 * time.Second
	// the endpoint rejects longer q values
	ttsChunkRunes = 180
)

// GoogleNarrator reads text aloud through Google Translate's free TTS endpoint.
// It is the fallback narrator when the primary speech provider fails.
type GoogleNarrator struct {
	baseURL  string
	language string
	client   *http.Client
}

// NewGoogleNarrator creates a Turkish narrator
func NewGoogleNarrator() *GoogleNarrator {
	return &GoogleNarrator{
		baseURL:  googleTTSURL,
		language: "tr",
		client:   &http.Client{Timeout: ttsRequestTimeout},
	}
}

// Synthesize returns concatenated MP3 audio for text. MP3 frames can be joined byte-wise.
func (g *GoogleNarrator) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := splitForTTS(text, ttsChunkRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if err := g.fetchChunk(ctx, chunk, i, len(chunks), &audio); err != nil {
			return nil, err
		}
	}
	return audio.Bytes(), nil
}

func (g *GoogleNarrator) fetchChunk(ctx context.Context, text string, idx, total int, w io.Writer) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("q", text)
	params.Set("tl", g.language)
	params.Set("client", "tw-ob")
	params.Set("idx", fmt.Sprintf("%d", idx))
	params.Set("total", fmt.Sprintf("%d", total))
	params.Set("textlen", fmt.Sprintf("%d", utf8.RuneCountInString(text)))

	ctx, cancel := context.WithTimeout(ctx, ttsRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// Set user agent (required by Google)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	return nil
}

// splitForTTS breaks text at sentence ends, then at spaces, so no chunk exceeds limit runes
func splitForTTS(text string, limit int) []string {
	words := strings.Fields(text)
	var (
		chunks  []string
		current strings.Builder
		n       int
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			n = 0
		}
	}

	for _, word := range words {
		wl := utf8.RuneCountInString(word)
		for wl > limit {
			// a single word longer than the limit is cut hard
			flush()
			runes := []rune(word)
			chunks = append(chunks, string(runes[:limit]))
			word = string(runes[limit:])
			wl = len(runes) - limit
		}
		if n > 0 && n+1+wl > limit {
			flush()
		}
		if n > 0 {
			current.WriteByte(' ')
			n++
		}
		current.WriteString(word)
		n += wl

		if strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?") {
			if n > limit/2 {
				flush()
			}
		}
	}
	flush()
	return chunks
}
