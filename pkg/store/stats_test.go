package store

import (
	"testing"
)

func TestGetStats(t *testing.T) {
	ctx, _, s := setupTestDBWithTables(t)

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}

	if len(stats.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(stats.Models))
	}
	if stats.TotalNGrams != 4 {
		t.Errorf("TotalNGrams = %d, want 4", stats.TotalNGrams)
	}
	if stats.TotalTransitions != 4 {
		t.Errorf("TotalTransitions = %d, want 4", stats.TotalTransitions)
	}

	ngramInfo, _ := s.ModelInfo(ctx, trigramKey)
	ngramStats := stats.Stats[ngramInfo.Id]
	if ngramStats.Rows != 4 || ngramStats.TotalWeight != 21 {
		t.Errorf("ngram stats = %+v, want 4 rows with weight 21", ngramStats)
	}

	markovInfo, _ := s.ModelInfo(ctx, dogKey)
	markovStats := stats.Stats[markovInfo.Id]
	if markovStats.Rows != 4 || markovStats.UniqueContexts != 3 {
		t.Errorf("markov stats = %+v, want 4 rows over 3 contexts", markovStats)
	}
}

func TestGetStatsEmpty(t *testing.T) {
	_, s := setupTestDB(t)

	stats, err := s.GetStats(t.Context())
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if len(stats.Models) != 0 || stats.TotalNGrams != 0 || stats.TotalTransitions != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}
