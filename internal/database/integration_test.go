package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

const testMigrationsPath = "../../migrations"

func openMigrated(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "atamind_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background(), testMigrationsPath); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	tables := []string{
		"guardians", "children", "stories", "safety_assessments", "usage_sessions",
		"activity_ratings", "biweekly_reports", "voice_recordings", "listening_history", "blocked_terms",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// A second run is a no-op.
	if err := db.RunMigrations(ctx, testMigrationsPath); err != nil {
		t.Fatalf("Re-running migrations failed: %v", err)
	}
}

// TestWithTx tests commit and rollback through the transaction helper
func TestWithTx(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := "INSERT INTO guardians (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, insert, "g1", "g1@example.com", "Ayşe", now, now)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	errAbort := errors.New("abort")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, insert, "g2", "g2@example.com", "Mehmet", now, now); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM guardians").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 guardian after rollback, got %d", count)
	}
}

func TestSeedBlockedTerms(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	if err := db.SeedBlockedTerms(ctx, nil); err != nil {
		t.Fatalf("SeedBlockedTerms failed: %v", err)
	}

	terms, err := db.LoadBlockedTerms(ctx)
	if err != nil {
		t.Fatalf("LoadBlockedTerms failed: %v", err)
	}
	if len(terms) != len(BuiltinBlockedTerms()) {
		t.Errorf("expected %d terms, got %d", len(BuiltinBlockedTerms()), len(terms))
	}
	if terms["cinayet"] != TermViolence {
		t.Errorf("expected cinayet to be a violence term, got %q", terms["cinayet"])
	}

	// Seeding twice keeps the table unchanged.
	if err := db.SeedBlockedTerms(ctx, nil); err != nil {
		t.Fatalf("second SeedBlockedTerms failed: %v", err)
	}
}
