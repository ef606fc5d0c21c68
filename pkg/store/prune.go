package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

// PruneNGrams removes all n-grams from a stored table that have a frequency
// less than or equal to minFreq. The stored metadata is left untouched so
// scores keep using the corpus-wide total. It returns the number of rows
// removed.
func (s *Store) PruneNGrams(ctx context.Context, key artifact.Key, minFreq int64) (int64, error) {
	key = key.Normalize()
	key.Kind = artifact.KindNGram

	id, _, err := s.lookup(ctx, key)
	if err != nil {
		return 0, err
	}

	res, err := s.stmtPruneNGrams.ExecContext(ctx, id, minFreq)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", id, err)
	}
	rowsAffected, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_key", key.String()),
		slog.Int("model_id", id),
		slog.Int64("min_frequency", minFreq),
		slog.Int64("rows_removed", rowsAffected),
	)
	return rowsAffected, nil
}

// PruneTransitions removes all transitions from a stored table whose
// probability is less than or equal to minProb. It returns the number of
// rows removed.
func (s *Store) PruneTransitions(ctx context.Context, key artifact.Key, minProb float64) (int64, error) {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov

	id, _, err := s.lookup(ctx, key)
	if err != nil {
		return 0, err
	}

	res, err := s.stmtPruneTransitions.ExecContext(ctx, id, minProb)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", id, err)
	}
	rowsAffected, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_key", key.String()),
		slog.Int("model_id", id),
		slog.Float64("min_probability", minProb),
		slog.Int64("rows_removed", rowsAffected),
	)
	return rowsAffected, nil
}
