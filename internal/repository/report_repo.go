package repository

import (
	"context"
	"fmt"

	"atamind/internal/database"
	"atamind/internal/models"
)

// ReportRepository stores generated biweekly reports
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists the report body as JSON
func (r *ReportRepository) Create(ctx context.Context, report *models.BiweeklyReport) error {
	report.ID = newID()
	report.CreatedAt = now()

	body, err := encodeJSON(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO biweekly_reports (id, child_id, period_start, period_end, engagement_score, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		report.ID, report.ChildID, report.PeriodStart.UTC(), report.PeriodEnd.UTC(),
		report.EngagementScore, body, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create biweekly report: %w", err)
	}
	return nil
}

// ListByChild returns a child's reports, newest first
func (r *ReportRepository) ListByChild(ctx context.Context, childID string) ([]models.BiweeklyReport, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT report FROM biweekly_reports WHERE child_id = ? ORDER BY created_at DESC", childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query biweekly reports: %w", err)
	}
	defer rows.Close()

	var reports []models.BiweeklyReport
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan biweekly report: %w", err)
		}
		var report models.BiweeklyReport
		if err := decodeJSON(body, &report); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
