package repository

import (
	"context"
	"fmt"

	"atamind/internal/database"
	"atamind/internal/models"
)

// ListeningRepository records which stories a child listened to
type ListeningRepository struct {
	db database.DBTX
}

// NewListeningRepository creates a new listening history repository
func NewListeningRepository(db database.DBTX) *ListeningRepository {
	return &ListeningRepository{db: db}
}

// Create stores one listening entry
func (r *ListeningRepository) Create(ctx context.Context, e *models.ListeningEntry) error {
	e.ID = newID()
	if e.ListenedAt.IsZero() {
		e.ListenedAt = now()
	}
	query := `
		INSERT INTO listening_history (id, child_id, story_id, duration_listened, completion_rate, engagement_score, listened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ChildID, e.StoryID, e.DurationListened, e.CompletionRate, e.EngagementScore, e.ListenedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create listening entry: %w", err)
	}
	return nil
}

// ListByChild returns the newest entries first, at most limit
func (r *ListeningRepository) ListByChild(ctx context.Context, childID string, limit int) ([]models.ListeningEntry, error) {
	query := `
		SELECT id, child_id, story_id, duration_listened, completion_rate, engagement_score, listened_at
		FROM listening_history
		WHERE child_id = ?
		ORDER BY listened_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query listening history: %w", err)
	}
	defer rows.Close()

	var entries []models.ListeningEntry
	for rows.Next() {
		var e models.ListeningEntry
		if err := rows.Scan(&e.ID, &e.ChildID, &e.StoryID, &e.DurationListened, &e.CompletionRate, &e.EngagementScore, &e.ListenedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listening entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
