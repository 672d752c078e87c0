package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_TYPE", "")
	t.Setenv("AI_TIMEOUT", "")

	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.AITimeout != 7*time.Second {
		t.Errorf("AITimeout = %v, want 7s", cfg.AITimeout)
	}
	if !cfg.FallbackProfile || cfg.FallbackMessage {
		t.Errorf("unexpected default pipeline policy: profile=%v message=%v", cfg.FallbackProfile, cfg.FallbackMessage)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Run("duration accepts seconds", func(t *testing.T) {
		t.Setenv("X_TIMEOUT", "12")
		if got := envOrDuration("X_TIMEOUT", time.Second); got != 12*time.Second {
			t.Errorf("got %v, want 12s", got)
		}
	})

	t.Run("duration accepts go syntax", func(t *testing.T) {
		t.Setenv("X_TIMEOUT", "1m30s")
		if got := envOrDuration("X_TIMEOUT", time.Second); got != 90*time.Second {
			t.Errorf("got %v, want 1m30s", got)
		}
	})

	t.Run("invalid int falls back", func(t *testing.T) {
		t.Setenv("X_SIZE", "lots")
		if got := envOrInt("X_SIZE", 5); got != 5 {
			t.Errorf("got %d, want 5", got)
		}
	})

	t.Run("csv trims blanks", func(t *testing.T) {
		got := parseCSV(" a, ,b ")
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("got %v", got)
		}
	})
}
