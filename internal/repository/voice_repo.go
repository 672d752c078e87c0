package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atamind/internal/database"
	"atamind/internal/models"
)

// VoiceRepository stores guardian voice recordings
type VoiceRepository struct {
	db database.DBTX
}

// NewVoiceRepository creates a new voice recording repository
func NewVoiceRepository(db database.DBTX) *VoiceRepository {
	return &VoiceRepository{db: db}
}

// Create stores a recording with its analysis
func (r *VoiceRepository) Create(ctx context.Context, rec *models.VoiceRecording) error {
	analysis, err := encodeJSON(rec.Analysis)
	if err != nil {
		return err
	}
	rec.ID = newID()
	rec.CreatedAt = now()

	query := `
		INSERT INTO voice_recordings (id, guardian_id, child_id, file_uri, transcript, analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.GuardianID, nullString(rec.ChildID), rec.FileURI, rec.Analysis.Transcript, analysis, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create voice recording: %w", err)
	}
	return nil
}

// GetByID retrieves a recording, returning nil when none exists
func (r *VoiceRepository) GetByID(ctx context.Context, id string) (*models.VoiceRecording, error) {
	query := `
		SELECT id, guardian_id, child_id, file_uri, analysis, created_at
		FROM voice_recordings
		WHERE id = ?
	`
	var (
		rec      models.VoiceRecording
		childID  sql.NullString
		analysis string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.GuardianID, &childID, &rec.FileURI, &analysis, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voice recording: %w", err)
	}
	rec.ChildID = stringPtr(childID)
	if err := decodeJSON(analysis, &rec.Analysis); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByGuardian returns a guardian's recordings, newest first
func (r *VoiceRepository) ListByGuardian(ctx context.Context, guardianID string) ([]models.VoiceRecording, error) {
	query := `
		SELECT id, guardian_id, child_id, file_uri, analysis, created_at
		FROM voice_recordings
		WHERE guardian_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, guardianID)
	if err != nil {
		return nil, fmt.Errorf("failed to query voice recordings: %w", err)
	}
	defer rows.Close()

	var recordings []models.VoiceRecording
	for rows.Next() {
		var (
			rec      models.VoiceRecording
			childID  sql.NullString
			analysis string
		)
		if err := rows.Scan(&rec.ID, &rec.GuardianID, &childID, &rec.FileURI, &analysis, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voice recording: %w", err)
		}
		rec.ChildID = stringPtr(childID)
		if err := decodeJSON(analysis, &rec.Analysis); err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}
