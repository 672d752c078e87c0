package content

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Resilient bounds every call with a timeout and a circuit breaker.
// Text calls get one breaker per Request.Agent, so report insights failing cannot open
// the breaker the story agents use. JSON answers have their code fences stripped.
type Resilient struct {
	next         Service
	textTimeout  time.Duration
	mediaTimeout time.Duration
	breakerCfg   BreakerConfig
	log          *zap.Logger

	mu     sync.Mutex
	text   map[string]*Breaker
	image  *Breaker
	speech *Breaker
	audio  *Breaker
}

// ResilienceConfig holds the per-call timeouts and the breaker template
type ResilienceConfig struct {
	TextTimeout  time.Duration
	MediaTimeout time.Duration
	Breaker      BreakerConfig
}

// NewResilient wraps next
func NewResilient(next Service, cfg ResilienceConfig, log *zap.Logger) *Resilient {
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = 7 * time.Second
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.Breaker.Logger = log

	return &Resilient{
		next:         next,
		textTimeout:  cfg.TextTimeout,
		mediaTimeout: cfg.MediaTimeout,
		breakerCfg:   cfg.Breaker,
		log:          log,
		text:         make(map[string]*Breaker),
		image:        NewBreaker("content_image", cfg.Breaker),
		speech:       NewBreaker("content_speech", cfg.Breaker),
		audio:        NewBreaker("content_audio", cfg.Breaker),
	}
}

// TextBreaker returns the breaker guarding JSON calls made by agent
func (r *Resilient) TextBreaker(agent string) *Breaker {
	if agent == "" {
		agent = "default"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.text[agent]
	if !ok {
		b = NewBreaker("content_text_"+agent, r.breakerCfg)
		r.text[agent] = b
	}
	return b
}

func (r *Resilient) GenerateJSON(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.textTimeout)
	defer cancel()

	var out string
	err := r.TextBreaker(req.Agent).Execute(func() error {
		text, err := r.next.GenerateJSON(ctx, req)
		if err != nil {
			return err
		}
		out = StripFences(text)
		if out == "" {
			return ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		r.log.Debug("json generation failed", zap.String("agent", req.Agent), zap.Error(err))
		return "", err
	}
	return out, nil
}

func (r *Resilient) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.mediaTimeout)
	defer cancel()

	var (
		data []byte
		mime string
	)
	err := r.image.Execute(func() error {
		var err error
		data, mime, err = r.next.GenerateImage(ctx, prompt)
		return err
	})
	return data, mime, err
}

// SynthesizeSpeech reads the whole stream inside the timeout so the caller never holds
// a body whose context has already been cancelled.
func (r *Resilient) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, r.mediaTimeout)
	defer cancel()

	var audio []byte
	err := r.speech.Execute(func() error {
		body, err := r.next.SynthesizeSpeech(ctx, text)
		if err != nil {
			return err
		}
		defer body.Close()
		audio, err = io.ReadAll(body)
		if err != nil {
			return err
		}
		if len(audio) == 0 {
			return ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(audio)), nil
}

func (r *Resilient) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.mediaTimeout)
	defer cancel()

	var out string
	err := r.audio.Execute(func() error {
		text, err := r.next.AnalyzeAudio(ctx, audio, mimeType, instruction)
		if err != nil {
			return err
		}
		out = StripFences(text)
		return nil
	})
	return out, err
}
