package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atamind/internal/models"
	"atamind/internal/repository"
	"atamind/internal/validation"
)

var (
	ErrChildNotFound = errors.New("child not found")
	// ErrForbidden is mapped to 404 by handlers so ownership is not leaked
	ErrForbidden = errors.New("child belongs to another guardian")
)

// ChildInput is the editable part of a child profile
type ChildInput struct {
	Name               string            `json:"name"`
	Age                int               `json:"age"`
	Interests          []string          `json:"interests"`
	LearningStyle      string            `json:"learning_style"`
	PersonalityTraits  map[string]string `json:"personality_traits"`
	CulturalBackground string            `json:"cultural_background"`
}

// ChildService manages child profiles
type ChildService struct {
	childRepo *repository.ChildRepository
}

// NewChildService creates a new child service
func NewChildService(childRepo *repository.ChildRepository) *ChildService {
	return &ChildService{childRepo: childRepo}
}

func (in ChildInput) apply(child *models.Child) error {
	child.Name = strings.TrimSpace(in.Name)
	child.Age = in.Age
	child.Interests = cleanStrings(in.Interests)
	child.PersonalityTraits = in.PersonalityTraits
	child.CulturalBackground = strings.TrimSpace(in.CulturalBackground)
	if child.CulturalBackground == "" {
		child.CulturalBackground = models.DefaultCulturalBackground
	}

	style, ok := models.ParseLearningStyle(in.LearningStyle)
	if !ok {
		return validation.ValidationError{Field: "learning_style", Message: "learning style must be visual, auditory, kinesthetic or mixed"}
	}
	child.LearningStyle = style

	return validation.ValidateChild(child)
}

// Create adds a child profile for guardianID
func (s *ChildService) Create(ctx context.Context, guardianID string, in ChildInput) (*models.Child, error) {
	child := &models.Child{GuardianID: guardianID}
	if err := in.apply(child); err != nil {
		return nil, err
	}
	if err := s.childRepo.Create(ctx, child); err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	return child, nil
}

// Get returns a child owned by guardianID
func (s *ChildService) Get(ctx context.Context, guardianID, childID string) (*models.Child, error) {
	child, err := s.childRepo.GetByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil {
		return nil, ErrChildNotFound
	}
	if child.GuardianID != guardianID {
		return nil, ErrForbidden
	}
	return child, nil
}

// List returns all children of a guardian
func (s *ChildService) List(ctx context.Context, guardianID string) ([]models.Child, error) {
	children, err := s.childRepo.ListByGuardian(ctx, guardianID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

// Update replaces the editable fields of a child profile
func (s *ChildService) Update(ctx context.Context, guardianID, childID string, in ChildInput) (*models.Child, error) {
	child, err := s.Get(ctx, guardianID, childID)
	if err != nil {
		return nil, err
	}
	if err := in.apply(child); err != nil {
		return nil, err
	}
	if err := s.childRepo.Update(ctx, child); err != nil {
		return nil, fmt.Errorf("failed to update child: %w", err)
	}
	return child, nil
}

// Delete removes a child profile and, through the schema, its history
func (s *ChildService) Delete(ctx context.Context, guardianID, childID string) error {
	if _, err := s.Get(ctx, guardianID, childID); err != nil {
		return err
	}
	if err := s.childRepo.Delete(ctx, childID); err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	return nil
}

// MergeInferredTraits stores profiler traits the guardian has not set yet
func (s *ChildService) MergeInferredTraits(ctx context.Context, child *models.Child, traits map[string]string) error {
	if !child.MergeTraits(traits) {
		return nil
	}
	if err := s.childRepo.Update(ctx, child); err != nil {
		return fmt.Errorf("failed to store inferred traits: %w", err)
	}
	return nil
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
