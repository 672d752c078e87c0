package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
)

type stubContent struct {
	speech    []byte
	speechErr error
	image     []byte
	imageMIME string
	imageErr  error
	prompt    string
}

func (s *stubContent) GenerateJSON(ctx context.Context, req content.Request) (string, error) {
	return "", content.ErrNotSupported
}

func (s *stubContent) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	s.prompt = prompt
	return s.image, s.imageMIME, s.imageErr
}

func (s *stubContent) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	if s.speechErr != nil {
		return nil, s.speechErr
	}
	return io.NopCloser(strings.NewReader(string(s.speech))), nil
}

func (s *stubContent) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error) {
	return "", content.ErrNotSupported
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func readURI(t *testing.T, store *Store, uri string) string {
	t.Helper()
	if !strings.HasPrefix(uri, URLPrefix) {
		t.Fatalf("uri %q missing prefix", uri)
	}
	data, err := os.ReadFile(filepath.Join(store.Dir(), strings.TrimPrefix(uri, URLPrefix)))
	if err != nil {
		t.Fatalf("failed to read stored file: %v", err)
	}
	return string(data)
}

func TestStoreSaveAndDelete(t *testing.T) {
	store := newTestStore(t)

	uri, err := store.Save("voice", ".webm", strings.NewReader("recording"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(uri, ".webm") {
		t.Errorf("unexpected extension in %q", uri)
	}
	if got := readURI(t, store, uri); got != "recording" {
		t.Errorf("stored %q", got)
	}

	if err := store.Delete(uri); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(uri); err != nil {
		t.Errorf("deleting a missing file should be a no-op: %v", err)
	}
	// path traversal collapses to the base name
	if err := store.Delete("/uploads/../../etc/passwd"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"image/png":              ".png",
		"image/jpeg":             ".jpg",
		"audio/webm;codecs=opus": ".webm",
		"AUDIO/MPEG":             ".mp3",
		"application/x-unknown":  ".bin",
	}
	for mime, want := range tests {
		t.Run(mime, func(t *testing.T) {
			if got := ExtensionFor(mime); got != want {
				t.Errorf("ExtensionFor(%q) = %q, want %q", mime, got, want)
			}
		})
	}
}

func TestSplitForTTS(t *testing.T) {
	text := strings.Repeat("Keloğlan ormanda yürüdü. ", 30)
	chunks := splitForTTS(text, 60)

	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	var rebuilt []string
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 60 {
			t.Errorf("chunk exceeds limit: %d runes", n)
		}
		rebuilt = append(rebuilt, c)
	}
	if strings.Join(rebuilt, " ") != strings.TrimSpace(strings.Join(strings.Fields(text), " ")) {
		t.Error("chunks do not reassemble the original text")
	}

	long := strings.Repeat("a", 25)
	for _, c := range splitForTTS(long, 10) {
		if len(c) > 10 {
			t.Errorf("overlong word not cut: %q", c)
		}
	}

	if got := splitForTTS("   ", 10); len(got) != 0 {
		t.Errorf("expected no chunks for blank text, got %v", got)
	}
}

func TestGoogleNarrator(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("tl") != "tr" {
			t.Errorf("expected tl=tr, got %q", r.URL.Query().Get("tl"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Write([]byte("mp3"))
	}))
	defer server.Close()

	g := NewGoogleNarrator()
	g.baseURL = server.URL

	text := strings.Repeat("Bir varmış bir yokmuş. ", 20)
	audio, err := g.Synthesize(context.Background(), text)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	n := int(atomic.LoadInt32(&calls))
	if n < 2 {
		t.Errorf("expected chunked requests, got %d", n)
	}
	if string(audio) != strings.Repeat("mp3", n) {
		t.Errorf("unexpected audio payload %q", audio)
	}
}

func TestGoogleNarratorStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewGoogleNarrator()
	g.baseURL = server.URL

	if _, err := g.Synthesize(context.Background(), "Merhaba"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestNarrate(t *testing.T) {
	fallbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("google"))
	}))
	defer fallbackServer.Close()

	fallback := NewGoogleNarrator()
	fallback.baseURL = fallbackServer.URL

	t.Run("primary", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(&stubContent{speech: []byte("openai")}, fallback, store, zap.NewNop())

		uri, err := svc.Narrate(context.Background(), "Başlık", "Hikaye")
		if err != nil {
			t.Fatalf("Narrate failed: %v", err)
		}
		if got := readURI(t, store, uri); got != "openai" {
			t.Errorf("expected primary audio, got %q", got)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(&stubContent{speechErr: errors.New("quota")}, fallback, store, zap.NewNop())

		uri, err := svc.Narrate(context.Background(), "Başlık", "Hikaye")
		if err != nil {
			t.Fatalf("Narrate failed: %v", err)
		}
		if got := readURI(t, store, uri); got != "google" {
			t.Errorf("expected fallback audio, got %q", got)
		}
	})

	t.Run("no fallback", func(t *testing.T) {
		svc := NewService(&stubContent{speechErr: errors.New("quota")}, nil, newTestStore(t), zap.NewNop())
		if _, err := svc.Narrate(context.Background(), "Başlık", "Hikaye"); err == nil {
			t.Fatal("expected error without fallback")
		}
	})
}

func TestIllustrate(t *testing.T) {
	store := newTestStore(t)
	stub := &stubContent{image: []byte("png"), imageMIME: "image/png"}
	svc := NewService(stub, nil, store, zap.NewNop())

	uri, err := svc.Illustrate(context.Background(), "Keloğlan ve Dev", []string{"Nasreddin Hoca", "çay bahçesi"})
	if err != nil {
		t.Fatalf("Illustrate failed: %v", err)
	}
	if !strings.HasSuffix(uri, ".png") {
		t.Errorf("unexpected uri %q", uri)
	}
	if !strings.Contains(stub.prompt, "Keloğlan ve Dev") || !strings.Contains(stub.prompt, "çay bahçesi") {
		t.Errorf("prompt missing story details: %q", stub.prompt)
	}

	stub.imageErr = errors.New("blocked")
	if _, err := svc.Illustrate(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error when image generation fails")
	}
}

func TestSaveFailureCountsMediaFailure(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(&stubContent{image: []byte("png"), imageMIME: "image/png", speech: []byte("mp3")}, nil, store, zap.NewNop())
	if err := os.RemoveAll(store.Dir()); err != nil {
		t.Fatalf("failed to remove store dir: %v", err)
	}

	imageBefore := testutil.ToFloat64(metrics.MediaFailures.WithLabelValues("image"))
	audioBefore := testutil.ToFloat64(metrics.MediaFailures.WithLabelValues("audio"))

	if _, err := svc.Illustrate(context.Background(), "Başlık", nil); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := svc.Narrate(context.Background(), "Başlık", "Hikaye"); err == nil {
		t.Fatal("expected save error")
	}

	if got := testutil.ToFloat64(metrics.MediaFailures.WithLabelValues("image")) - imageBefore; got != 1 {
		t.Errorf("image failures increased by %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.MediaFailures.WithLabelValues("audio")) - audioBefore; got != 1 {
		t.Errorf("audio failures increased by %v, want 1", got)
	}
}

func TestRecordingOpenAndRemove(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(&stubContent{}, nil, store, zap.NewNop())

	uri, err := svc.SaveRecording(strings.NewReader("ses"), "audio/webm")
	if err != nil {
		t.Fatalf("SaveRecording failed: %v", err)
	}
	if !strings.HasPrefix(uri, URLPrefix+RecordingPrefix+"_") {
		t.Errorf("unexpected recording uri %q", uri)
	}

	f, err := svc.OpenRecording(uri)
	if err != nil {
		t.Fatalf("OpenRecording failed: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "ses" {
		t.Errorf("read %q", data)
	}

	svc.Remove(uri, "")
	if _, err := svc.OpenRecording(uri); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected removed file, got %v", err)
	}
}
