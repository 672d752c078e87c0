package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"atamind/internal/models"
	"atamind/internal/repository"
)

// ReportDelivery emails finished reports to the child's guardian
type ReportDelivery struct {
	guardianRepo *repository.GuardianRepository
	email        *EmailService
	log          *zap.Logger
}

// NewReportDelivery creates a new report delivery
func NewReportDelivery(guardianRepo *repository.GuardianRepository, email *EmailService, log *zap.Logger) *ReportDelivery {
	return &ReportDelivery{guardianRepo: guardianRepo, email: email, log: log.Named("report_delivery")}
}

// Notify sends the report email. It is a no-op when email is disabled.
func (d *ReportDelivery) Notify(ctx context.Context, child *models.Child, report *models.BiweeklyReport) error {
	if d.email == nil || !d.email.IsEnabled() {
		return nil
	}

	guardian, err := d.guardianRepo.GetByID(ctx, child.GuardianID)
	if err != nil {
		return fmt.Errorf("failed to get guardian: %w", err)
	}
	if guardian == nil {
		return fmt.Errorf("guardian %s not found", child.GuardianID)
	}

	if err := d.email.SendReportEmail(ctx, guardian, child, report); err != nil {
		return err
	}
	d.log.Info("report notification sent", zap.String("child_id", child.ID), zap.String("report_id", report.ID))
	return nil
}
