package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atamind/internal/database"
	"atamind/internal/models"
)

// GuardianRepository handles database operations for guardian accounts
type GuardianRepository struct {
	db database.DBTX
}

// NewGuardianRepository creates a new guardian repository
func NewGuardianRepository(db database.DBTX) *GuardianRepository {
	return &GuardianRepository{db: db}
}

const guardianColumns = "id, email, name, password_hash, oauth_provider, oauth_subject, created_at, updated_at"

// Create inserts a new guardian
func (r *GuardianRepository) Create(ctx context.Context, email, passwordHash, name string) (*models.Guardian, error) {
	ts := now()
	g := &models.Guardian{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	query := `
		INSERT INTO guardians (id, email, name, password_hash, oauth_provider, oauth_subject, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', '', ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, g.ID, g.Email, g.Name, g.PasswordHash, ts, ts); err != nil {
		return nil, fmt.Errorf("failed to create guardian: %w", err)
	}
	return g, nil
}

// GetByID retrieves a guardian by ID, returning nil when none exists
func (r *GuardianRepository) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	return r.getOne(ctx, "SELECT "+guardianColumns+" FROM guardians WHERE id = ?", id)
}

// GetByEmail retrieves a guardian by email address
func (r *GuardianRepository) GetByEmail(ctx context.Context, email string) (*models.Guardian, error) {
	return r.getOne(ctx, "SELECT "+guardianColumns+" FROM guardians WHERE email = ?", email)
}

// GetByOAuth retrieves a guardian linked to an OAuth identity
func (r *GuardianRepository) GetByOAuth(ctx context.Context, provider, subject string) (*models.Guardian, error) {
	return r.getOne(ctx, "SELECT "+guardianColumns+" FROM guardians WHERE oauth_provider = ? AND oauth_subject = ?", provider, subject)
}

// LinkOAuth attaches an OAuth identity to an existing guardian
func (r *GuardianRepository) LinkOAuth(ctx context.Context, id, provider, subject string) error {
	query := "UPDATE guardians SET oauth_provider = ?, oauth_subject = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, provider, subject, now(), id)
	if err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}
	return checkAffected(res)
}

func (r *GuardianRepository) getOne(ctx context.Context, query string, args ...any) (*models.Guardian, error) {
	g := &models.Guardian{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&g.ID,
		&g.Email,
		&g.Name,
		&g.PasswordHash,
		&g.OAuthProvider,
		&g.OAuthSubject,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guardian: %w", err)
	}
	return g, nil
}
