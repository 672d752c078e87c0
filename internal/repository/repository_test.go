package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"atamind/internal/database"
	"atamind/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background(), "../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func seedChild(t *testing.T, db *database.DB) (*models.Guardian, *models.Child) {
	t.Helper()
	ctx := context.Background()

	guardian, err := NewGuardianRepository(db).Create(ctx, "veli@example.com", "hash", "Ayşe")
	if err != nil {
		t.Fatalf("Create guardian failed: %v", err)
	}
	child := &models.Child{
		GuardianID:         guardian.ID,
		Name:               "Elif",
		Age:                5,
		Interests:          []string{"hayvanlar"},
		LearningStyle:      models.LearningVisual,
		CulturalBackground: models.DefaultCulturalBackground,
	}
	if err := NewChildRepository(db).Create(ctx, child); err != nil {
		t.Fatalf("Create child failed: %v", err)
	}
	return guardian, child
}

func TestChildRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	guardian, child := seedChild(t, db)
	repo := NewChildRepository(db)

	got, err := repo.GetByID(ctx, child.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if got.Name != "Elif" || got.Age != 5 || len(got.Interests) != 1 {
		t.Errorf("unexpected child: %+v", got)
	}

	got.PersonalityTraits = map[string]string{"curiosity": "high"}
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	children, err := repo.ListByGuardian(ctx, guardian.ID)
	if err != nil {
		t.Fatalf("ListByGuardian failed: %v", err)
	}
	if len(children) != 1 || children[0].PersonalityTraits["curiosity"] != "high" {
		t.Errorf("unexpected children: %+v", children)
	}

	missing, err := repo.GetByID(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestStoryRepositoryStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	guardian, child := seedChild(t, db)
	repo := NewStoryRepository(db)

	story := &models.Story{
		GuardianID:     guardian.ID,
		ChildID:        child.ID,
		Title:          "Keloğlan ve Dostları",
		Body:           "Bir varmış bir yokmuş...",
		ValuesTaught:   []string{"Yardımlaşma"},
		Difficulty:     models.DifficultyEasy,
		SafetyScore:    7,
		ApprovalStatus: models.ApprovalNeedsReview,
	}
	assessment := &models.SafetyAssessment{SafetyScore: 7, ApprovalStatus: models.ApprovalNeedsReview}
	if err := repo.Create(ctx, story, assessment); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deliverable, err := repo.ListDeliverableByChild(ctx, child.ID)
	if err != nil {
		t.Fatalf("ListDeliverableByChild failed: %v", err)
	}
	if len(deliverable) != 0 {
		t.Errorf("needs_review story must not be deliverable")
	}

	approval := &models.SafetyAssessment{SafetyScore: 7, ApprovalStatus: models.ApprovalApproved, Feedback: "guardian approved"}
	if err := repo.UpdateStatus(ctx, story.ID, approval); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	latest, err := repo.LatestAssessment(ctx, story.ID)
	if err != nil || latest == nil {
		t.Fatalf("LatestAssessment = %v, %v", latest, err)
	}
	if latest.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("latest status = %s, want approved", latest.ApprovalStatus)
	}

	deliverable, err = repo.ListDeliverableByChild(ctx, child.ID)
	if err != nil {
		t.Fatalf("ListDeliverableByChild failed: %v", err)
	}
	if len(deliverable) != 1 || deliverable[0].Title != story.Title {
		t.Errorf("expected approved story to be deliverable, got %+v", deliverable)
	}

	if err := repo.UpdateStatus(ctx, "missing", approval); err == nil {
		t.Error("expected error for unknown story")
	}
}

func TestSessionAndRatingRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, child := seedChild(t, db)
	sessions := NewSessionRepository(db)
	ratings := NewRatingRepository(db)

	start := time.Now().UTC().Add(-30 * time.Minute)
	session, err := sessions.Create(ctx, child.ID, start)
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}

	open, err := sessions.LatestOpen(ctx, child.ID)
	if err != nil || open == nil || open.ID != session.ID {
		t.Fatalf("LatestOpen = %v, %v", open, err)
	}
	if err := sessions.IncrementActivities(ctx, session.ID); err != nil {
		t.Fatalf("IncrementActivities failed: %v", err)
	}

	for _, r := range []int{5, 3} {
		rating := &models.ActivityRating{ChildID: child.ID, ActivityType: "story", Rating: r}
		if err := ratings.Create(ctx, rating); err != nil {
			t.Fatalf("Create rating failed: %v", err)
		}
	}

	avg, err := ratings.Average(ctx, child.ID, time.Time{})
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	if avg != 4 {
		t.Errorf("Average = %v, want 4", avg)
	}

	end := time.Now().UTC()
	session.End = &end
	session.ActivitiesCompleted = 1
	session.DurationMinutes = 30
	session.AverageRating = avg
	if err := sessions.Close(ctx, session); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sessions.Close(ctx, session); err != ErrNotFound {
		t.Errorf("closing twice = %v, want ErrNotFound", err)
	}

	open, err = sessions.LatestOpen(ctx, child.ID)
	if err != nil || open != nil {
		t.Errorf("LatestOpen after close = %v, %v; want nil", open, err)
	}

	recent, err := ratings.ListRecent(ctx, child.ID, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("ListRecent = %v, %v", recent, err)
	}

	since, err := sessions.ListSince(ctx, child.ID, start.Add(-time.Minute))
	if err != nil || len(since) != 1 {
		t.Fatalf("ListSince = %v, %v", since, err)
	}
	if since[0].IsOpen() || since[0].ActivitiesCompleted != 1 {
		t.Errorf("unexpected closed session: %+v", since[0])
	}
}

func TestReportRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, child := seedChild(t, db)
	repo := NewReportRepository(db)

	end := time.Now().UTC()
	report := &models.BiweeklyReport{
		ChildID:               child.ID,
		PeriodStart:           end.AddDate(0, 0, -14),
		PeriodEnd:             end,
		EngagementScore:       42.5,
		RecommendedActivities: []string{"Interaktif Türk masalları"},
	}
	if err := repo.Create(ctx, report); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reports, err := repo.ListByChild(ctx, child.ID)
	if err != nil {
		t.Fatalf("ListByChild failed: %v", err)
	}
	if len(reports) != 1 || reports[0].EngagementScore != 42.5 || reports[0].ID != report.ID {
		t.Errorf("unexpected reports: %+v", reports)
	}
}
