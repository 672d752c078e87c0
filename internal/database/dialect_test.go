package database

import (
	"testing"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("InsertIgnoreQuery", func(t *testing.T) {
		result := dialect.InsertIgnoreQuery("blocked_terms", "term", "category")
		expected := "INSERT OR IGNORE INTO blocked_terms (term, category) VALUES (?, ?)"
		if result != expected {
			t.Errorf("InsertIgnoreQuery() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("InsertIgnoreQuery", func(t *testing.T) {
		result := dialect.InsertIgnoreQuery("blocked_terms", "term", "category")
		expected := "INSERT INTO blocked_terms (term, category) VALUES (?, ?) ON CONFLICT DO NOTHING"
		if result != expected {
			t.Errorf("InsertIgnoreQuery() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("InsertIgnoreQuery", func(t *testing.T) {
		result := dialect.InsertIgnoreQuery("blocked_terms", "term", "category")
		expected := "INSERT IGNORE INTO blocked_terms (term, category) VALUES (?, ?)"
		if result != expected {
			t.Errorf("InsertIgnoreQuery() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM children WHERE id = ?",
			expected: "SELECT * FROM children WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM children WHERE id = ?",
			expected: "SELECT * FROM children WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO activity_ratings (child_id, rating) VALUES (?, ?)",
			expected: "INSERT INTO activity_ratings (child_id, rating) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE usage_sessions SET session_end = ?, activities_completed = ? WHERE id = ?",
			expected: "UPDATE usage_sessions SET session_end = ?, activities_completed = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMySQLDSNParseTime(t *testing.T) {
	dialect := NewMySQLDialect()

	tests := []struct {
		url      string
		expected string
	}{
		{"user:pw@tcp(db:3306)/atamind", "user:pw@tcp(db:3306)/atamind?parseTime=true"},
		{"user:pw@tcp(db:3306)/atamind?charset=utf8mb4", "user:pw@tcp(db:3306)/atamind?charset=utf8mb4&parseTime=true"},
		{"user:pw@tcp(db:3306)/atamind?parseTime=false", "user:pw@tcp(db:3306)/atamind?parseTime=false"},
	}

	for _, tt := range tests {
		if got := dialect.DSN(DialectConfig{URL: tt.url}); got != tt.expected {
			t.Errorf("DSN(%q) = %q, want %q", tt.url, got, tt.expected)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (
    id TEXT PRIMARY KEY
);

CREATE INDEX idx_a ON a(id);
INSERT INTO a (id) VALUES ('x')`

	stmts := splitStatements(content)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX idx_a ON a(id);" {
		t.Errorf("unexpected second statement %q", stmts[1])
	}
}
