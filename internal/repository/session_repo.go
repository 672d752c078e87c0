package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atamind/internal/database"
	"atamind/internal/models"
)

// SessionRepository handles usage sessions
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new usage session repository
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, child_id, session_start, session_end, activities_completed, duration_minutes, average_rating"

// Create opens a session starting at start
func (r *SessionRepository) Create(ctx context.Context, childID string, start time.Time) (*models.UsageSession, error) {
	s := &models.UsageSession{ID: newID(), ChildID: childID, Start: start.UTC()}
	query := `
		INSERT INTO usage_sessions (id, child_id, session_start, activities_completed, duration_minutes, average_rating)
		VALUES (?, ?, ?, 0, 0, 0)
	`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.ChildID, s.Start); err != nil {
		return nil, fmt.Errorf("failed to create usage session: %w", err)
	}
	return s, nil
}

// GetByID retrieves a session, returning nil when none exists
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.UsageSession, error) {
	return r.getOne(ctx, "SELECT "+sessionColumns+" FROM usage_sessions WHERE id = ?", id)
}

// LatestOpen returns the child's most recently started session that has not ended
func (r *SessionRepository) LatestOpen(ctx context.Context, childID string) (*models.UsageSession, error) {
	query := "SELECT " + sessionColumns + `
		FROM usage_sessions
		WHERE child_id = ? AND session_end IS NULL
		ORDER BY session_start DESC
		LIMIT 1`
	return r.getOne(ctx, query, childID)
}

// IncrementActivities bumps the completed-activity counter of an open session
func (r *SessionRepository) IncrementActivities(ctx context.Context, id string) error {
	query := "UPDATE usage_sessions SET activities_completed = activities_completed + 1 WHERE id = ? AND session_end IS NULL"
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update session activities: %w", err)
	}
	return checkAffected(res)
}

// Close writes the end-of-session fields. Only open sessions are updated.
func (r *SessionRepository) Close(ctx context.Context, s *models.UsageSession) error {
	query := `
		UPDATE usage_sessions
		SET session_end = ?, activities_completed = ?, duration_minutes = ?, average_rating = ?
		WHERE id = ? AND session_end IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, nullTime(s.End), s.ActivitiesCompleted, s.DurationMinutes, s.AverageRating, s.ID)
	if err != nil {
		return fmt.Errorf("failed to close usage session: %w", err)
	}
	return checkAffected(res)
}

// ListSince returns sessions that started at or after since, oldest first
func (r *SessionRepository) ListSince(ctx context.Context, childID string, since time.Time) ([]models.UsageSession, error) {
	query := "SELECT " + sessionColumns + " FROM usage_sessions WHERE child_id = ? AND session_start >= ? ORDER BY session_start ASC"
	rows, err := r.db.QueryContext(ctx, query, childID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.UsageSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...any) (*models.UsageSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage session: %w", err)
	}
	return s, nil
}

func scanSession(row rowScanner) (*models.UsageSession, error) {
	var (
		s   models.UsageSession
		end sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.ChildID, &s.Start, &end, &s.ActivitiesCompleted, &s.DurationMinutes, &s.AverageRating); err != nil {
		return nil, err
	}
	s.End = timePtr(end)
	return &s, nil
}
