package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"atamind/internal/analytics"
	"atamind/internal/locks"
	"atamind/internal/metrics"
	"atamind/internal/models"
	"atamind/internal/repository"
	"atamind/internal/validation"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already ended")
)

const recentRatingsLimit = 10

// RatingInput is a child's rating of one activity
type RatingInput struct {
	ChildID      string  `json:"child_id"`
	ActivityType string  `json:"activity_type"`
	ActivityID   *string `json:"activity_id"`
	Rating       int     `json:"rating"`
	Feedback     *string `json:"feedback_text"`
}

// AnalyticsService records usage and builds statistics and reports
type AnalyticsService struct {
	children    *ChildService
	sessionRepo *repository.SessionRepository
	ratingRepo  *repository.RatingRepository
	reportRepo  *repository.ReportRepository
	advisor     *analytics.Advisor
	locker      locks.Locker
	log         *zap.Logger
	now         func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	children *ChildService,
	sessionRepo *repository.SessionRepository,
	ratingRepo *repository.RatingRepository,
	reportRepo *repository.ReportRepository,
	advisor *analytics.Advisor,
	locker locks.Locker,
	log *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		children:    children,
		sessionRepo: sessionRepo,
		ratingRepo:  ratingRepo,
		reportRepo:  reportRepo,
		advisor:     advisor,
		locker:      locker,
		log:         log.Named("analytics"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func childLockKey(childID string) string {
	return "atamind:lock:child:" + childID
}

// RecordRating stores a clamped rating and counts it against the child's open session
func (s *AnalyticsService) RecordRating(ctx context.Context, guardianID string, in RatingInput) (*models.ActivityRating, error) {
	activityType := strings.TrimSpace(in.ActivityType)
	if activityType == "" {
		return nil, validation.ValidationError{Field: "activity_type", Message: "Activity type is required"}
	}
	if _, err := s.children.Get(ctx, guardianID, in.ChildID); err != nil {
		return nil, err
	}

	rating := &models.ActivityRating{
		ChildID:      in.ChildID,
		ActivityType: activityType,
		ActivityID:   in.ActivityID,
		Rating:       analytics.ClampRating(in.Rating),
		Feedback:     in.Feedback,
		RatedAt:      s.now(),
	}

	unlock, err := s.locker.Lock(ctx, childLockKey(in.ChildID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock child: %w", err)
	}
	defer unlock()

	if err := s.ratingRepo.Create(ctx, rating); err != nil {
		return nil, fmt.Errorf("failed to record rating: %w", err)
	}
	metrics.RatingsRecorded.Inc()

	session, err := s.sessionRepo.LatestOpen(ctx, in.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	if session != nil {
		if err := s.sessionRepo.IncrementActivities(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
	}

	return rating, nil
}

// StartSession opens a new usage session for a child
func (s *AnalyticsService) StartSession(ctx context.Context, guardianID, childID string) (*models.UsageSession, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.Create(ctx, childID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return session, nil
}

// EndSession closes a session, computing its duration and average rating
func (s *AnalyticsService) EndSession(ctx context.Context, guardianID, sessionID string) (*models.UsageSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if _, err := s.children.Get(ctx, guardianID, session.ChildID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, childLockKey(session.ChildID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock child: %w", err)
	}
	defer unlock()

	// Reload under the lock so concurrent ratings are counted.
	session, err = s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.IsOpen() {
		return nil, ErrSessionClosed
	}

	end := s.now()
	avg, err := s.ratingRepo.Average(ctx, session.ChildID, session.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}

	session.End = &end
	session.DurationMinutes = analytics.Round1(analytics.SessionDuration(session.Start, end))
	session.AverageRating = analytics.Round1(analytics.ClampAverage(avg))

	if err := s.sessionRepo.Close(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	return session, nil
}

// GetUsageStatistics summarises today, the past seven days and recent ratings
func (s *AnalyticsService) GetUsageStatistics(ctx context.Context, guardianID, childID string) (*models.UsageStatistics, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}

	now := s.now()
	today := analytics.StartOfDay(now)
	weekStart := today.AddDate(0, 0, -7)

	sessions, err := s.sessionRepo.ListSince(ctx, childID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	avg, err := s.ratingRepo.Average(ctx, childID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	recent, err := s.ratingRepo.ListRecent(ctx, childID, recentRatingsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent ratings: %w", err)
	}
	if recent == nil {
		recent = []models.ActivityRating{}
	}

	return &models.UsageStatistics{
		Today:         analytics.SumUsage(sessions, today),
		Week:          analytics.SumUsage(sessions, weekStart),
		AverageRating: analytics.Round1(avg),
		RecentRatings: recent,
	}, nil
}

// window loads the trailing report window for a child
func (s *AnalyticsService) window(ctx context.Context, childID string) (time.Time, time.Time, []models.UsageSession, []models.ActivityRating, error) {
	end := s.now()
	start := end.Add(-analytics.ReportWindow)

	sessions, err := s.sessionRepo.ListSince(ctx, childID, start)
	if err != nil {
		return start, end, nil, nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	ratings, err := s.ratingRepo.ListSince(ctx, childID, start)
	if err != nil {
		return start, end, nil, nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return start, end, sessions, ratings, nil
}

// GenerateBiweeklyReport builds and stores the report for one of the guardian's children
func (s *AnalyticsService) GenerateBiweeklyReport(ctx context.Context, guardianID, childID string) (*models.BiweeklyReport, error) {
	child, err := s.children.Get(ctx, guardianID, childID)
	if err != nil {
		return nil, err
	}
	return s.GenerateReportForChild(ctx, child)
}

// GenerateReportForChild builds and stores a report without an ownership check.
// Model failures only degrade the report to static content.
func (s *AnalyticsService) GenerateReportForChild(ctx context.Context, child *models.Child) (*models.BiweeklyReport, error) {
	start, end, sessions, ratings, err := s.window(ctx, child.ID)
	if err != nil {
		return nil, err
	}

	report := analytics.BuildReport(child.ID, start, end, sessions, ratings)
	report.VoiceMessages.Suggestions = s.advisor.VoiceSuggestions(ctx, analytics.VoiceRatings(ratings))
	report.Insights = s.advisor.Insights(ctx, child, sessions, ratings)
	report.RecommendedActivities = s.advisor.Recommendations(ctx, child, ratings)

	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	metrics.ReportsGenerated.Inc()

	s.log.Info("biweekly report generated",
		zap.String("child_id", child.ID),
		zap.Int("sessions", len(sessions)),
		zap.Int("ratings", len(ratings)),
		zap.Float64("engagement_score", report.EngagementScore),
	)
	return report, nil
}

// GetReports returns stored reports, newest first
func (s *AnalyticsService) GetReports(ctx context.Context, guardianID, childID string) ([]models.BiweeklyReport, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	return s.ListReports(ctx, childID)
}

// ListReports returns stored reports without an ownership check
func (s *AnalyticsService) ListReports(ctx context.Context, childID string) ([]models.BiweeklyReport, error) {
	reports, err := s.reportRepo.ListByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if reports == nil {
		reports = []models.BiweeklyReport{}
	}
	return reports, nil
}

// GetMostRatedActivities ranks the activities rated in the report window
func (s *AnalyticsService) GetMostRatedActivities(ctx context.Context, guardianID, childID string) ([]models.RatedActivity, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	_, _, _, ratings, err := s.window(ctx, childID)
	if err != nil {
		return nil, err
	}
	most := analytics.MostRated(ratings)
	if most == nil {
		most = []models.RatedActivity{}
	}
	return most, nil
}

// GetEngagementPatterns describes engagement over the report window
func (s *AnalyticsService) GetEngagementPatterns(ctx context.Context, guardianID, childID string) (*models.EngagementPatterns, error) {
	if _, err := s.children.Get(ctx, guardianID, childID); err != nil {
		return nil, err
	}
	_, _, sessions, ratings, err := s.window(ctx, childID)
	if err != nil {
		return nil, err
	}
	patterns := analytics.Patterns(sessions, ratings)
	return &patterns, nil
}
