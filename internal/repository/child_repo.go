package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atamind/internal/database"
	"atamind/internal/models"
)

// ChildRepository handles database operations for child profiles
type ChildRepository struct {
	db database.DBTX
}

// NewChildRepository creates a new child repository
func NewChildRepository(db database.DBTX) *ChildRepository {
	return &ChildRepository{db: db}
}

const childColumns = `id, guardian_id, name, age, interests, learning_style, personality_traits,
	cultural_background, created_at, updated_at`

// Create inserts the child and fills in ID and timestamps
func (r *ChildRepository) Create(ctx context.Context, child *models.Child) error {
	interests, err := encodeJSON(nonNilStrings(child.Interests))
	if err != nil {
		return err
	}
	traits, err := encodeJSON(nonNilTraits(child.PersonalityTraits))
	if err != nil {
		return err
	}

	child.ID = newID()
	child.CreatedAt = now()
	child.UpdatedAt = child.CreatedAt

	query := `
		INSERT INTO children (id, guardian_id, name, age, interests, learning_style, personality_traits,
			cultural_background, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		child.ID, child.GuardianID, child.Name, child.Age, interests, string(child.LearningStyle), traits,
		child.CulturalBackground, child.CreatedAt, child.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create child: %w", err)
	}
	return nil
}

// GetByID retrieves a child by ID, returning nil when none exists
func (r *ChildRepository) GetByID(ctx context.Context, id string) (*models.Child, error) {
	query := "SELECT " + childColumns + " FROM children WHERE id = ?"
	child, err := scanChild(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return child, nil
}

// ListByGuardian retrieves all children owned by a guardian
func (r *ChildRepository) ListByGuardian(ctx context.Context, guardianID string) ([]models.Child, error) {
	query := "SELECT " + childColumns + " FROM children WHERE guardian_id = ? ORDER BY created_at ASC"
	return r.list(ctx, query, guardianID)
}

// ListAll retrieves every child, used by batch report generation
func (r *ChildRepository) ListAll(ctx context.Context) ([]models.Child, error) {
	return r.list(ctx, "SELECT "+childColumns+" FROM children ORDER BY created_at ASC")
}

// Update writes the mutable profile fields
func (r *ChildRepository) Update(ctx context.Context, child *models.Child) error {
	interests, err := encodeJSON(nonNilStrings(child.Interests))
	if err != nil {
		return err
	}
	traits, err := encodeJSON(nonNilTraits(child.PersonalityTraits))
	if err != nil {
		return err
	}

	child.UpdatedAt = now()
	query := `
		UPDATE children
		SET name = ?, age = ?, interests = ?, learning_style = ?, personality_traits = ?,
			cultural_background = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		child.Name, child.Age, interests, string(child.LearningStyle), traits,
		child.CulturalBackground, child.UpdatedAt, child.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	return checkAffected(res)
}

// Delete removes a child profile and, through cascades, its records
func (r *ChildRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM children WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	return checkAffected(res)
}

func (r *ChildRepository) list(ctx context.Context, query string, args ...any) ([]models.Child, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		child, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, *child)
	}
	return children, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChild(row rowScanner) (*models.Child, error) {
	var (
		child     models.Child
		interests string
		style     string
		traits    string
	)
	err := row.Scan(
		&child.ID,
		&child.GuardianID,
		&child.Name,
		&child.Age,
		&interests,
		&style,
		&traits,
		&child.CulturalBackground,
		&child.CreatedAt,
		&child.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	child.LearningStyle = models.LearningStyle(style)
	if err := decodeJSON(interests, &child.Interests); err != nil {
		return nil, err
	}
	if err := decodeJSON(traits, &child.PersonalityTraits); err != nil {
		return nil, err
	}
	return &child, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilTraits(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
