package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

var (
	trigramKey = artifact.Key{Kind: artifact.KindNGram, Lang: "en", Order: 3}
	dogKey     = artifact.Key{Kind: artifact.KindMarkov, Lang: "en", Order: 2}
)

// setupTestDB creates a new SQLite database in a temporary directory and a
// Store for testing. It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestDBWithTables also stores the trigram and dog tables.
func setupTestDBWithTables(t *testing.T) (context.Context, *sql.DB, *Store) {
	db, s := setupTestDB(t)
	ctx := context.Background()

	if err := s.PutNGrams(ctx, trigramKey, trigramTable(), ngram.Metadata{TotalNGrams: 100, UniqueNGrams: 4}); err != nil {
		t.Fatalf("setup: PutNGrams() failed: %v", err)
	}
	if err := s.PutTransitions(ctx, dogKey, dogTable(), markov.Metadata{VocabSize: 6, UniqueContexts: 3, TotalTransitions: 4}); err != nil {
		t.Fatalf("setup: PutTransitions() failed: %v", err)
	}
	return ctx, db, s
}

func trigramTable() []ngram.Entry {
	return []ngram.Entry{
		{NGram: []string{"the", "dog", "barks"}, Frequency: 7},
		{NGram: []string{"the", "dog", "runs"}, Frequency: 3},
		{NGram: []string{"the", "cat", "sleeps"}, Frequency: 1},
		{NGram: []string{"a", "b", "c"}, Frequency: 10},
	}
}

func dogTable() []markov.Transition {
	return []markov.Transition{
		{Context: []string{"the", "dog"}, NextToken: "barks", Probability: 0.7},
		{Context: []string{"the", "dog"}, NextToken: "runs", Probability: 0.3},
		{Context: []string{"dog", "barks"}, NextToken: "▁loudly", Probability: 1},
		{Context: []string{"dog", "runs"}, NextToken: "away", Probability: 1},
	}
}
