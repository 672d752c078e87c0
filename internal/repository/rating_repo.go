package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"atamind/internal/database"
	"atamind/internal/models"
)

// RatingRepository handles activity ratings
type RatingRepository struct {
	db database.DBTX
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db database.DBTX) *RatingRepository {
	return &RatingRepository{db: db}
}

const ratingColumns = "id, child_id, activity_type, activity_id, rating, feedback, rated_at"

// Create stores a rating. The caller is responsible for clamping the value.
func (r *RatingRepository) Create(ctx context.Context, rating *models.ActivityRating) error {
	rating.ID = newID()
	if rating.RatedAt.IsZero() {
		rating.RatedAt = now()
	}
	rating.RatedAt = rating.RatedAt.UTC()

	query := `
		INSERT INTO activity_ratings (id, child_id, activity_type, activity_id, rating, feedback, rated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rating.ID, rating.ChildID, rating.ActivityType, nullString(rating.ActivityID),
		rating.Rating, nullString(rating.Feedback), rating.RatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity rating: %w", err)
	}
	return nil
}

// ListSince returns ratings at or after since, oldest first
func (r *RatingRepository) ListSince(ctx context.Context, childID string, since time.Time) ([]models.ActivityRating, error) {
	query := "SELECT " + ratingColumns + " FROM activity_ratings WHERE child_id = ? AND rated_at >= ? ORDER BY rated_at ASC"
	return r.list(ctx, query, childID, since.UTC())
}

// ListRecent returns the newest ratings first
func (r *RatingRepository) ListRecent(ctx context.Context, childID string, limit int) ([]models.ActivityRating, error) {
	query := "SELECT " + ratingColumns + " FROM activity_ratings WHERE child_id = ? ORDER BY rated_at DESC LIMIT ?"
	return r.list(ctx, query, childID, limit)
}

// Average returns the mean rating since the given time; zero time means all time.
// The result is 0 when there are no ratings.
func (r *RatingRepository) Average(ctx context.Context, childID string, since time.Time) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		"SELECT AVG(rating) FROM activity_ratings WHERE child_id = ? AND rated_at >= ?",
		childID, since.UTC(),
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average ratings: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func (r *RatingRepository) list(ctx context.Context, query string, args ...any) ([]models.ActivityRating, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.ActivityRating
	for rows.Next() {
		var (
			rating               models.ActivityRating
			activityID, feedback sql.NullString
		)
		if err := rows.Scan(&rating.ID, &rating.ChildID, &rating.ActivityType, &activityID, &rating.Rating, &feedback, &rating.RatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity rating: %w", err)
		}
		rating.ActivityID = stringPtr(activityID)
		rating.Feedback = stringPtr(feedback)
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}
