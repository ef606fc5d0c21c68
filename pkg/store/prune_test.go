package store

import (
	"errors"
	"testing"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

func TestPruneNGrams(t *testing.T) {
	ctx, _, s := setupTestDBWithTables(t)

	removed, err := s.PruneNGrams(ctx, trigramKey, 3)
	if err != nil {
		t.Fatalf("PruneNGrams failed: %v", err)
	}
	// "the dog runs" (3) and "the cat sleeps" (1) go.
	if removed != 2 {
		t.Errorf("PruneNGrams() removed %d rows, want 2", removed)
	}

	entries, meta, err := s.LoadNGrams(ctx, trigramKey)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Frequency <= 3 {
			t.Errorf("entry %v survived pruning", e)
		}
	}
	if len(entries) != 2 || entries[0].NGram[2] != "barks" {
		t.Errorf("remaining entries lost their order: %v", entries)
	}
	if meta.TotalNGrams != 100 {
		t.Errorf("pruning should not touch metadata, TotalNGrams = %d", meta.TotalNGrams)
	}
}

func TestPruneTransitions(t *testing.T) {
	ctx, _, s := setupTestDBWithTables(t)

	removed, err := s.PruneTransitions(ctx, dogKey, 0.5)
	if err != nil {
		t.Fatalf("PruneTransitions failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("PruneTransitions() removed %d rows, want 1", removed)
	}

	rows, _, err := s.LoadTransitions(ctx, dogKey)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.NextToken == "runs" {
			t.Error("transition the dog -> runs survived pruning")
		}
	}
}

func TestPruneMissingModel(t *testing.T) {
	_, s := setupTestDB(t)

	_, err := s.PruneNGrams(t.Context(), trigramKey, 1)
	if !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("PruneNGrams() error = %v, want ErrNotFound", err)
	}
}
