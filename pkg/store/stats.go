package store

import (
	"context"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models           []ModelInfo        // A list of models in the database
	Stats            map[int]ModelStats // A mapping of model ids to their stats
	TotalNGrams      int                // The number of n-gram rows across all models
	TotalTransitions int                // The number of transition rows across all models
}

// ModelStats holds aggregated statistics for a single stored table.
type ModelStats struct {
	Rows           int     `json:"rows"`            // The number of rows in the table.
	TotalWeight    float64 `json:"total_weight"`    // The sum of frequencies (n-gram) or probabilities (markov).
	UniqueContexts int     `json:"unique_contexts"` // The number of distinct contexts; zero for n-gram tables.
}

// GetStats returns a snapshot of statistics for the entire database,
// including global counts and per-model stats.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := s.ModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	var totalNGrams int
	if err = s.stmtCountNGrams.QueryRowContext(ctx).Scan(&totalNGrams); err != nil {
		return nil, err
	}

	var totalTransitions int
	if err = s.stmtCountTransitions.QueryRowContext(ctx).Scan(&totalTransitions); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats)
	for _, v := range modelInfos {
		models = append(models, v)
		var stats ModelStats
		switch v.Key.Kind {
		case artifact.KindNGram:
			var total int64
			err = s.stmtNGramStats.QueryRowContext(ctx, v.Id).Scan(&stats.Rows, &total)
			stats.TotalWeight = float64(total)
		default:
			err = s.stmtTransitionStats.QueryRowContext(ctx, v.Id).Scan(&stats.Rows, &stats.UniqueContexts, &stats.TotalWeight)
		}
		if err != nil {
			return nil, err
		}
		modelStats[v.Id] = stats
	}

	return &DBStats{
		Models:           models,
		Stats:            modelStats,
		TotalNGrams:      totalNGrams,
		TotalTransitions: totalTransitions,
	}, nil
}
