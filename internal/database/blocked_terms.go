package database

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"atamind/internal/logger"
)

// Blocked term categories double as safety risk flags.
const (
	TermViolence         = "violence"
	TermFearInducing     = "fear_inducing"
	TermAgeInappropriate = "age_inappropriate"
)

// BlockedTermSources are public word lists merged into the built-in screen.
var BlockedTermSources = []string{
	"https://raw.githubusercontent.com/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words/refs/heads/master/tr",
	"https://raw.githubusercontent.com/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words/refs/heads/master/en",
}

var builtinBlockedTerms = map[string][]string{
	TermViolence: {
		"öldür", "öldürdü", "cinayet", "katil", "bıçakla", "silahla", "vurdu", "kan döktü", "işkence", "savaş",
		"kill", "murder", "stab", "shoot", "torture", "blood",
	},
	TermFearInducing: {
		"canavar yedi", "hortlak", "cehennem", "kabus", "lanetli", "ölüm",
		"nightmare", "haunted", "demon", "zombie",
	},
	TermAgeInappropriate: {
		"intihar", "alkol", "sigara", "kumar", "uyuşturucu",
		"suicide", "alcohol", "drugs", "gambling",
	},
}

// SeedBlockedTerms stores the built-in terms and, when sources are given, downloads additional
// lists into the age_inappropriate category. A failed download is logged, not returned.
func (db *DB) SeedBlockedTerms(ctx context.Context, sources []string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocked_terms").Scan(&count); err != nil {
		return fmt.Errorf("failed to check blocked terms count: %w", err)
	}
	if count > 0 {
		logger.Log.Info("blocked terms already populated", zap.Int("count", count))
		return nil
	}

	terms := make(map[string]string)
	for category, list := range builtinBlockedTerms {
		for _, term := range list {
			terms[term] = category
		}
	}

	for _, source := range sources {
		downloaded, err := downloadTermList(ctx, source)
		if err != nil {
			logger.Log.Warn("failed to download blocked term list", zap.String("source", source), zap.Error(err))
			continue
		}
		for _, term := range downloaded {
			if _, ok := terms[term]; !ok {
				terms[term] = TermAgeInappropriate
			}
		}
	}

	insert := db.Dialect.InsertIgnoreQuery("blocked_terms", "term", "category")
	added := 0
	err := db.WithTx(ctx, func(tx *Tx) error {
		for term, category := range terms {
			if _, err := tx.ExecContext(ctx, insert, term, category); err != nil {
				return fmt.Errorf("failed to insert term %q: %w", term, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("blocked terms populated", zap.Int("count", added))
	return nil
}

func downloadTermList(ctx context.Context, url string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var terms []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if term := normalizeTerm(scanner.Text()); term != "" {
			terms = append(terms, term)
		}
	}
	return terms, scanner.Err()
}

// LoadBlockedTerms returns every stored term keyed by its category.
func (db *DB) LoadBlockedTerms(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT term, category FROM blocked_terms")
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked terms: %w", err)
	}
	defer rows.Close()

	terms := make(map[string]string)
	for rows.Next() {
		var term, category string
		if err := rows.Scan(&term, &category); err != nil {
			return nil, fmt.Errorf("failed to scan blocked term: %w", err)
		}
		terms[term] = category
	}
	return terms, rows.Err()
}

// BuiltinBlockedTerms returns the static screen without touching the database.
func BuiltinBlockedTerms() map[string]string {
	terms := make(map[string]string)
	for category, list := range builtinBlockedTerms {
		for _, term := range list {
			terms[term] = category
		}
	}
	return terms
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
