package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atamind/internal/database"
	"atamind/internal/models"
)

// StoryRepository handles stories and their safety assessments
type StoryRepository struct {
	db *database.DB
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *database.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

const storyColumns = `id, guardian_id, child_id, title, body, values_taught, cultural_elements,
	discussion_questions, engagement_factors, moral_lesson, difficulty, estimated_duration,
	audio_uri, image_uri, safety_score, approval_status, regenerated, analysis, created_at`

// Create stores a story together with the assessment that gated it.
// The story's approval status must match the assessment's.
func (r *StoryRepository) Create(ctx context.Context, story *models.Story, assessment *models.SafetyAssessment) error {
	if assessment != nil && assessment.ApprovalStatus != story.ApprovalStatus {
		return fmt.Errorf("story status %q does not match assessment status %q", story.ApprovalStatus, assessment.ApprovalStatus)
	}

	story.ID = newID()
	story.CreatedAt = now()

	cols, err := storyJSONColumns(story)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO stories (id, guardian_id, child_id, title, body, values_taught, cultural_elements,
				discussion_questions, engagement_factors, moral_lesson, difficulty, estimated_duration,
				audio_uri, image_uri, safety_score, approval_status, regenerated, analysis, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			story.ID, story.GuardianID, story.ChildID, story.Title, story.Body,
			cols.values, cols.cultural, cols.questions, cols.engagement,
			story.MoralLesson, string(story.Difficulty), story.EstimatedDuration,
			nullString(story.AudioURI), nullString(story.ImageURI),
			story.SafetyScore, string(story.ApprovalStatus), story.Regenerated, cols.analysis, story.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create story: %w", err)
		}

		if assessment == nil {
			return nil
		}
		assessment.StoryID = story.ID
		return insertAssessment(ctx, tx, assessment)
	})
}

// GetByID retrieves a story, returning nil when none exists
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	story, err := scanStory(r.db.QueryRowContext(ctx, "SELECT "+storyColumns+" FROM stories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return story, nil
}

// ListByChild returns a child's stories, newest first
func (r *StoryRepository) ListByChild(ctx context.Context, childID string) ([]models.Story, error) {
	query := "SELECT " + storyColumns + " FROM stories WHERE child_id = ? ORDER BY created_at DESC"
	return r.list(ctx, query, childID)
}

// ListDeliverableByChild returns only stories that passed the safety gate
func (r *StoryRepository) ListDeliverableByChild(ctx context.Context, childID string) ([]models.Story, error) {
	query := "SELECT " + storyColumns + " FROM stories WHERE child_id = ? AND approval_status = ? ORDER BY created_at DESC"
	return r.list(ctx, query, childID, string(models.ApprovalApproved))
}

// UpdateStatus appends a new assessment and mirrors its status onto the story
func (r *StoryRepository) UpdateStatus(ctx context.Context, storyID string, assessment *models.SafetyAssessment) error {
	assessment.StoryID = storyID
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := insertAssessment(ctx, tx, assessment); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "UPDATE stories SET approval_status = ? WHERE id = ?",
			string(assessment.ApprovalStatus), storyID)
		if err != nil {
			return fmt.Errorf("failed to update story status: %w", err)
		}
		return checkAffected(res)
	})
}

// LatestAssessment returns the most recent assessment of a story, or nil
func (r *StoryRepository) LatestAssessment(ctx context.Context, storyID string) (*models.SafetyAssessment, error) {
	query := `
		SELECT id, story_id, age_score, cultural_score, educational_score, safety_score, language_score,
			is_safe, risks, recommendations, approval_status, feedback, created_at
		FROM safety_assessments
		WHERE story_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		a           models.SafetyAssessment
		risks, recs string
		status      string
	)
	err := r.db.QueryRowContext(ctx, query, storyID).Scan(
		&a.ID, &a.StoryID, &a.AgeAppropriateness, &a.CulturalAppropriateness, &a.EducationalValue,
		&a.SafetyScore, &a.LanguageAppropriateness, &a.IsSafe, &risks, &recs, &status, &a.Feedback, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get safety assessment: %w", err)
	}
	a.ApprovalStatus = models.ApprovalStatus(status)
	if err := decodeJSON(risks, &a.Risks); err != nil {
		return nil, err
	}
	if err := decodeJSON(recs, &a.Recommendations); err != nil {
		return nil, err
	}
	return &a, nil
}

func insertAssessment(ctx context.Context, tx *database.Tx, a *models.SafetyAssessment) error {
	risks, err := encodeJSON(nonNilStrings(a.Risks))
	if err != nil {
		return err
	}
	recs, err := encodeJSON(nonNilStrings(a.Recommendations))
	if err != nil {
		return err
	}

	a.ID = newID()
	a.CreatedAt = now()

	query := `
		INSERT INTO safety_assessments (id, story_id, age_score, cultural_score, educational_score, safety_score,
			language_score, is_safe, risks, recommendations, approval_status, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		a.ID, a.StoryID, a.AgeAppropriateness, a.CulturalAppropriateness, a.EducationalValue, a.SafetyScore,
		a.LanguageAppropriateness, a.IsSafe, risks, recs, string(a.ApprovalStatus), a.Feedback, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create safety assessment: %w", err)
	}
	return nil
}

func (r *StoryRepository) list(ctx context.Context, query string, args ...any) ([]models.Story, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, *story)
	}
	return stories, rows.Err()
}

type storyJSON struct {
	values, cultural, questions, engagement, analysis string
}

func storyJSONColumns(s *models.Story) (storyJSON, error) {
	var (
		out storyJSON
		err error
	)
	if out.values, err = encodeJSON(nonNilStrings(s.ValuesTaught)); err != nil {
		return out, err
	}
	if out.cultural, err = encodeJSON(nonNilStrings(s.CulturalElements)); err != nil {
		return out, err
	}
	if out.questions, err = encodeJSON(nonNilStrings(s.DiscussionQuestions)); err != nil {
		return out, err
	}
	if out.engagement, err = encodeJSON(nonNilStrings(s.EngagementFactors)); err != nil {
		return out, err
	}
	out.analysis = "{}"
	if s.Analysis != nil {
		if out.analysis, err = encodeJSON(s.Analysis); err != nil {
			return out, err
		}
	}
	return out, nil
}

func scanStory(row rowScanner) (*models.Story, error) {
	var (
		s                  models.Story
		cols               storyJSON
		difficulty, status string
		audio, image       sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.GuardianID, &s.ChildID, &s.Title, &s.Body,
		&cols.values, &cols.cultural, &cols.questions, &cols.engagement,
		&s.MoralLesson, &difficulty, &s.EstimatedDuration,
		&audio, &image, &s.SafetyScore, &status, &s.Regenerated, &cols.analysis, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Difficulty = models.Difficulty(difficulty)
	s.ApprovalStatus = models.ApprovalStatus(status)
	s.AudioURI = stringPtr(audio)
	s.ImageURI = stringPtr(image)

	for _, c := range []struct {
		raw string
		dst *[]string
	}{
		{cols.values, &s.ValuesTaught},
		{cols.cultural, &s.CulturalElements},
		{cols.questions, &s.DiscussionQuestions},
		{cols.engagement, &s.EngagementFactors},
	} {
		if err := decodeJSON(c.raw, c.dst); err != nil {
			return nil, err
		}
	}

	if cols.analysis != "" && cols.analysis != "{}" {
		s.Analysis = &models.AnalysisBundle{}
		if err := decodeJSON(cols.analysis, s.Analysis); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
