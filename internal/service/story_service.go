package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"atamind/internal/models"
	"atamind/internal/orchestrator"
	"atamind/internal/repository"
	"atamind/internal/validation"
)

var (
	ErrStoryNotFound      = errors.New("story not found")
	ErrStoryNotReviewable = errors.New("only stories that need review can be approved")
)

const listeningHistoryLimit = 50

// StoryGenerator runs the story pipeline for one child
type StoryGenerator interface {
	Run(ctx context.Context, child *models.Child, message string) (*orchestrator.Result, error)
}

// MediaRemover deletes media files the pipeline produced
type MediaRemover interface {
	Remove(uris ...string)
}

// StoryService generates, stores and serves stories
type StoryService struct {
	children      *ChildService
	storyRepo     *repository.StoryRepository
	listeningRepo *repository.ListeningRepository
	generator     StoryGenerator
	media         MediaRemover
	log           *zap.Logger
}

// NewStoryService creates a new story service. media may be nil.
func NewStoryService(children *ChildService, storyRepo *repository.StoryRepository, listeningRepo *repository.ListeningRepository, generator StoryGenerator, media MediaRemover, log *zap.Logger) *StoryService {
	return &StoryService{
		children:      children,
		storyRepo:     storyRepo,
		listeningRepo: listeningRepo,
		generator:     generator,
		media:         media,
		log:           log.Named("stories"),
	}
}

// Generate runs the pipeline for a guardian's message and stores the resulting story.
// Pipeline failures are returned wrapped in orchestrator.ErrGenerationUnavailable.
func (s *StoryService) Generate(ctx context.Context, guardianID, childID, message string) (*models.Story, error) {
	message = strings.TrimSpace(message)
	if err := validation.ValidateMessage(message); err != nil {
		return nil, err
	}

	child, err := s.children.Get(ctx, guardianID, childID)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Run(ctx, child, message)
	if err != nil {
		return nil, err
	}

	insights := result.Analysis.ChildInsights
	if !insights.Fallback && len(insights.InferredTraits) > 0 {
		if err := s.children.MergeInferredTraits(ctx, child, insights.InferredTraits); err != nil {
			s.log.Warn("failed to merge inferred traits", zap.String("child_id", child.ID), zap.Error(err))
		}
	}

	draft := result.Draft
	analysis := result.Analysis
	story := &models.Story{
		GuardianID:          guardianID,
		ChildID:             child.ID,
		Title:               draft.Title,
		Body:                draft.Body,
		ValuesTaught:        draft.ValuesTaught,
		CulturalElements:    draft.CulturalElements,
		DiscussionQuestions: draft.DiscussionQuestions,
		EngagementFactors:   draft.EngagementFactors,
		MoralLesson:         draft.MoralLesson,
		Difficulty:          draft.Difficulty,
		EstimatedDuration:   draft.EstimatedDuration,
		AudioURI:            result.AudioURI,
		ImageURI:            result.ImageURI,
		SafetyScore:         result.Assessment.SafetyScore,
		ApprovalStatus:      result.Assessment.ApprovalStatus,
		Regenerated:         analysis.Regenerated,
		Analysis:            &analysis,
	}

	if err := s.storyRepo.Create(ctx, story, result.Assessment); err != nil {
		s.removeMedia(story)
		return nil, fmt.Errorf("failed to store story: %w", err)
	}

	s.log.Info("story generated",
		zap.String("story_id", story.ID),
		zap.String("child_id", child.ID),
		zap.String("status", string(story.ApprovalStatus)),
		zap.Bool("regenerated", story.Regenerated),
	)
	return story, nil
}

func (s *StoryService) removeMedia(story *models.Story) {
	if s.media == nil {
		return
	}
	var uris []string
	for _, uri := range []*string{story.AudioURI, story.ImageURI} {
		if uri != nil {
			uris = append(uris, *uri)
		}
	}
	s.media.Remove(uris...)
}

// Get returns a story owned by guardianID
func (s *StoryService) Get(ctx context.Context, guardianID, storyID string) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	if story == nil || story.GuardianID != guardianID {
		return nil, ErrStoryNotFound
	}
	return story, nil
}

// ListByChild returns every story of a child, whatever its status
func (s *StoryService) ListByChild(ctx context.Context, guardianID, childID string) ([]models.Story, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	stories, err := s.storyRepo.ListByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}

// Deliverable returns only the stories a child may see
func (s *StoryService) Deliverable(ctx context.Context, guardianID, childID string) ([]models.Story, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	stories, err := s.storyRepo.ListDeliverableByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverable stories: %w", err)
	}
	return stories, nil
}

// Approve moves a story from needs_review to approved by appending a guardian assessment.
// Only needs_review stories can be approved: approved and rejected stories return
// ErrStoryNotReviewable, so a story is never approved twice.
func (s *StoryService) Approve(ctx context.Context, guardianID, storyID string) (*models.Story, error) {
	story, err := s.Get(ctx, guardianID, storyID)
	if err != nil {
		return nil, err
	}
	if story.ApprovalStatus != models.ApprovalNeedsReview {
		return nil, ErrStoryNotReviewable
	}

	latest, err := s.storyRepo.LatestAssessment(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment: %w", err)
	}

	approval := &models.SafetyAssessment{
		IsSafe:         true,
		ApprovalStatus: models.ApprovalApproved,
		Feedback:       "Ebeveyn tarafından onaylandı",
	}
	if latest != nil {
		approval.AgeAppropriateness = latest.AgeAppropriateness
		approval.CulturalAppropriateness = latest.CulturalAppropriateness
		approval.EducationalValue = latest.EducationalValue
		approval.SafetyScore = latest.SafetyScore
		approval.LanguageAppropriateness = latest.LanguageAppropriateness
		approval.Risks = latest.Risks
	}

	if err := s.storyRepo.UpdateStatus(ctx, storyID, approval); err != nil {
		return nil, fmt.Errorf("failed to approve story: %w", err)
	}

	s.log.Info("story approved by guardian", zap.String("story_id", storyID))
	story.ApprovalStatus = models.ApprovalApproved
	return story, nil
}

// ListeningInput is one listen reported by the player
type ListeningInput struct {
	ChildID          string  `json:"child_id"`
	StoryID          string  `json:"story_id"`
	DurationListened int     `json:"duration_listened"`
	CompletionRate   float64 `json:"completion_rate"`
	EngagementScore  float64 `json:"engagement_score"`
}

// RecordListening stores a listen of one of the child's stories
func (s *StoryService) RecordListening(ctx context.Context, guardianID string, in ListeningInput) (*models.ListeningEntry, error) {
	if in.ChildID == "" || in.StoryID == "" {
		return nil, validation.ValidationError{Field: "story_id", Message: "Child and story are required"}
	}
	if _, err := s.children.Get(ctx, guardianID, in.ChildID); err != nil {
		return nil, err
	}
	story, err := s.Get(ctx, guardianID, in.StoryID)
	if err != nil {
		return nil, err
	}
	if story.ChildID != in.ChildID {
		return nil, ErrStoryNotFound
	}

	entry := &models.ListeningEntry{
		ChildID:          in.ChildID,
		StoryID:          in.StoryID,
		DurationListened: max(in.DurationListened, 0),
		CompletionRate:   clampFloat(in.CompletionRate, 0, 1),
		EngagementScore:  clampFloat(in.EngagementScore, 0, 100),
	}
	if err := s.listeningRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record listening: %w", err)
	}
	return entry, nil
}

// ListeningHistory returns the newest listens of a child
func (s *StoryService) ListeningHistory(ctx context.Context, guardianID, childID string) ([]models.ListeningEntry, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	entries, err := s.listeningRepo.ListByChild(ctx, childID, listeningHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list listening history: %w", err)
	}
	return entries, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
