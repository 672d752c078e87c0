// Package orchestrator sequences the story agents into a single generation run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"atamind/internal/agents"
	"atamind/internal/metrics"
	"atamind/internal/models"
)

// ErrGenerationUnavailable wraps any failure of a stage that is not allowed to fall back
var ErrGenerationUnavailable = errors.New("story generation temporarily unavailable")

// State is one step of a generation run
type State string

const (
	StateProfilingChild    State = "profiling_child"
	StateAnalyzingMessage  State = "analyzing_message"
	StateComposingStory    State = "composing_story"
	StateValidatingSafety  State = "validating_safety"
	StateApproved          State = "approved"
	StateRegeneratingStory State = "regenerating_story"
	StateAttachingMedia    State = "attaching_media"
	StateComplete          State = "complete"
	StateFailed            State = "failed"
)

type Profiler interface {
	Analyze(ctx context.Context, child *models.Child, opts agents.Options) (*models.DevelopmentalAnalysis, error)
}

type MessageAnalyzer interface {
	Analyze(ctx context.Context, message string, opts agents.Options) (*models.MessageAnalysis, error)
}

type Composer interface {
	Compose(ctx context.Context, in agents.ComposeInput, opts agents.Options) (*models.StoryDraft, error)
}

type Validator interface {
	Validate(ctx context.Context, draft *models.StoryDraft, child *models.Child, opts agents.Options) (*models.SafetyAssessment, error)
}

// MediaGenerator attaches narration and an illustration to a finished story
type MediaGenerator interface {
	Narrate(ctx context.Context, title, body string) (string, error)
	Illustrate(ctx context.Context, title string, culturalElements []string) (string, error)
}

// Policy chooses, per stage, whether a model failure falls back to a deterministic result
type Policy struct {
	FallbackProfile  bool
	FallbackMessage  bool
	FallbackCompose  bool
	FallbackValidate bool
}

// DefaultPolicy absorbs profiler failures and propagates the rest
func DefaultPolicy() Policy {
	return Policy{FallbackProfile: true}
}

// Config holds the pipeline policy and timeouts
type Config struct {
	Policy          Policy
	MediaTimeout    time.Duration
	PipelineTimeout time.Duration
	// OnTransition is called after every state change, in order
	OnTransition func(State)
}

// Result is the outcome of a completed run
type Result struct {
	Draft      *models.StoryDraft
	Assessment *models.SafetyAssessment
	AudioURI   *string
	ImageURI   *string
	Analysis   models.AnalysisBundle
}

// Pipeline runs profile → analyse → compose → validate → (regenerate) → media
type Pipeline struct {
	profiler  Profiler
	analyzer  MessageAnalyzer
	composer  Composer
	validator Validator
	media     MediaGenerator
	cfg       Config
	log       *zap.Logger
}

// New creates a pipeline. media may be nil, in which case no media is attached.
func New(p Profiler, m MessageAnalyzer, c Composer, v Validator, media MediaGenerator, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = 60 * time.Second
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = 240 * time.Second
	}
	return &Pipeline{
		profiler:  p,
		analyzer:  m,
		composer:  c,
		validator: v,
		media:     media,
		cfg:       cfg,
		log:       log.Named("pipeline"),
	}
}

// run tracks the states visited by one generation
type run struct {
	p      *Pipeline
	log    *zap.Logger
	states []string
}

func (r *run) enter(s State) {
	r.states = append(r.states, string(s))
	metrics.PipelineStateTotal.WithLabelValues(string(s)).Inc()
	r.log.Debug("pipeline state", zap.String("state", string(s)))
	if r.p.cfg.OnTransition != nil {
		r.p.cfg.OnTransition(s)
	}
}

// fail records the terminal state. err is expected to name the stage that failed.
func (r *run) fail(err error) error {
	r.enter(StateFailed)
	r.log.Error("story generation failed", zap.Error(err))
	return fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
}

// Run generates one story for child from the guardian's message
func (p *Pipeline) Run(ctx context.Context, child *models.Child, message string) (result *Result, err error) {
	start := time.Now()
	defer func() {
		outcome := "complete"
		if err != nil {
			outcome = "failed"
		}
		metrics.PipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PipelineTimeout)
	defer cancel()

	r := &run{p: p, log: p.log.With(zap.String("child_id", child.ID))}
	policy := p.cfg.Policy

	// Profiling and message analysis are independent of each other.
	var (
		analysis    *models.DevelopmentalAnalysis
		msgAnalysis *models.MessageAnalysis
	)
	r.enter(StateProfilingChild)
	r.enter(StateAnalyzingMessage)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := p.profiler.Analyze(gctx, child, agents.Options{Fallback: policy.FallbackProfile})
		if err != nil {
			return fmt.Errorf("%s: %w", StateProfilingChild, err)
		}
		analysis = a
		return nil
	})
	g.Go(func() error {
		m, err := p.analyzer.Analyze(gctx, message, agents.Options{Fallback: policy.FallbackMessage})
		if err != nil {
			return fmt.Errorf("%s: %w", StateAnalyzingMessage, err)
		}
		msgAnalysis = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, r.fail(err)
	}

	in := agents.ComposeInput{
		Child:           child,
		Analysis:        analysis,
		Message:         message,
		MessageAnalysis: msgAnalysis,
	}
	composeOpts := agents.Options{Fallback: policy.FallbackCompose}

	r.enter(StateComposingStory)
	draft, err := p.composer.Compose(ctx, in, composeOpts)
	if err != nil {
		return nil, r.fail(fmt.Errorf("%s: %w", StateComposingStory, err))
	}

	r.enter(StateValidatingSafety)
	assessment, err := p.validator.Validate(ctx, draft, child, agents.Options{Fallback: policy.FallbackValidate})
	if err != nil {
		return nil, r.fail(fmt.Errorf("%s: %w", StateValidatingSafety, err))
	}

	regenerated := false
	if !assessment.IsSafe {
		r.enter(StateRegeneratingStory)
		in.SafetyGuidelines = safetyGuidelines(assessment)

		draft, err = p.composer.Compose(ctx, in, composeOpts)
		if err != nil {
			return nil, r.fail(fmt.Errorf("%s: %w", StateRegeneratingStory, err))
		}
		// The second draft is not validated again and waits for the guardian.
		regenerated = true
		assessment.ApprovalStatus = models.ApprovalNeedsReview
		metrics.StoryRegenerations.Inc()
		r.log.Info("story regenerated after safety check", zap.Strings("guidelines", in.SafetyGuidelines))
	} else {
		r.enter(StateApproved)
	}

	r.enter(StateAttachingMedia)
	audioURI, imageURI := p.attachMedia(ctx, r.log, draft)

	r.enter(StateComplete)

	return &Result{
		Draft:      draft,
		Assessment: assessment,
		AudioURI:   audioURI,
		ImageURI:   imageURI,
		Analysis: models.AnalysisBundle{
			ChildInsights:         *analysis,
			MessageAnalysis:       *msgAnalysis,
			SafetyScore:           assessment.SafetyScore,
			SafetyRisks:           assessment.Risks,
			EngagementPredictions: draft.EngagementFactors,
			DifficultyLevel:       draft.Difficulty,
			Regenerated:           regenerated,
			States:                r.states,
		},
	}, nil
}

// attachMedia runs narration and illustration side by side. Either may fail on its own.
func (p *Pipeline) attachMedia(ctx context.Context, log *zap.Logger, draft *models.StoryDraft) (audioURI, imageURI *string) {
	if p.media == nil {
		return nil, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		mctx, cancel := context.WithTimeout(ctx, p.cfg.MediaTimeout)
		defer cancel()

		uri, err := p.media.Narrate(mctx, draft.Title, draft.Body)
		if err != nil {
			log.Warn("story narration failed", zap.Error(err))
			return
		}
		audioURI = &uri
	}()

	go func() {
		defer wg.Done()
		mctx, cancel := context.WithTimeout(ctx, p.cfg.MediaTimeout)
		defer cancel()

		uri, err := p.media.Illustrate(mctx, draft.Title, draft.CulturalElements)
		if err != nil {
			log.Warn("story illustration failed", zap.Error(err))
			return
		}
		imageURI = &uri
	}()

	wg.Wait()
	return audioURI, imageURI
}

// safetyGuidelines prefers the validator's recommendations and falls back to the risk list
func safetyGuidelines(a *models.SafetyAssessment) []string {
	if len(a.Recommendations) > 0 {
		return a.Recommendations
	}
	if len(a.Risks) > 0 {
		guidelines := make([]string, 0, len(a.Risks))
		for _, risk := range a.Risks {
			guidelines = append(guidelines, "Kaçınılacak risk: "+risk)
		}
		return guidelines
	}
	return []string{"Hikayeyi daha yumuşak ve yaşa tamamen uygun hale getir."}
}
