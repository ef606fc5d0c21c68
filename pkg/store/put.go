package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

// PutNGrams stores an n-gram table under the given key, replacing any table
// previously stored there. Row order is preserved. The entire operation is
// performed within a single database transaction.
func (s *Store) PutNGrams(ctx context.Context, key artifact.Key, entries []ngram.Entry, meta ngram.Metadata) error {
	key = key.Normalize()
	key.Kind = artifact.KindNGram

	tx, modelID, err := s.beginReplace(ctx, key, meta)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmtInsert, err := tx.PrepareContext(ctx, `INSERT INTO lm_ngrams (model_id, row_id, ngram, frequency) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare ngram insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsert)

	for i, entry := range entries {
		encoded, err := json.Marshal(entry.NGram)
		if err != nil {
			return fmt.Errorf("could not encode ngram at row %d: %w", i, err)
		}
		if _, err = stmtInsert.ExecContext(ctx, modelID, i, string(encoded), entry.Frequency); err != nil {
			return fmt.Errorf("failed to insert ngram at row %d: %w", i, err)
		}
	}

	s.logger.InfoContext(ctx, "NGram table stored",
		slog.String("model_key", key.String()),
		slog.Int("model_id", modelID),
		slog.Int("rows", len(entries)),
	)

	return tx.Commit()
}

// PutTransitions stores a transition table under the given key, replacing
// any table previously stored there. Row order is preserved. The entire
// operation is performed within a single database transaction.
func (s *Store) PutTransitions(ctx context.Context, key artifact.Key, rows []markov.Transition, meta markov.Metadata) error {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov

	tx, modelID, err := s.beginReplace(ctx, key, meta)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmtInsert, err := tx.PrepareContext(ctx, `INSERT INTO lm_transitions (model_id, row_id, context, next_token, probability) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsert)

	for i, row := range rows {
		encoded, err := json.Marshal(row.Context)
		if err != nil {
			return fmt.Errorf("could not encode context at row %d: %w", i, err)
		}
		if _, err = stmtInsert.ExecContext(ctx, modelID, i, string(encoded), row.NextToken, row.Probability); err != nil {
			return fmt.Errorf("failed to insert transition at row %d: %w", i, err)
		}
	}

	s.logger.InfoContext(ctx, "Transition table stored",
		slog.String("model_key", key.String()),
		slog.Int("model_id", modelID),
		slog.Int("rows", len(rows)),
	)

	return tx.Commit()
}

// beginReplace opens a transaction, upserts the model row with the given
// metadata and clears any rows previously stored for it. The caller owns
// the returned transaction.
func (s *Store) beginReplace(ctx context.Context, key artifact.Key, meta any) (*sql.Tx, int, error) {
	encodedMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, 0, fmt.Errorf("could not encode metadata for %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("could not begin transaction: %w", err)
	}

	var modelID int
	err = tx.StmtContext(ctx, s.stmtUpsertModel).QueryRowContext(ctx,
		string(key.Kind), key.Lang, key.Date, key.Order, key.Variant, string(encodedMeta),
	).Scan(&modelID)
	if err != nil {
		_ = tx.Rollback()
		return nil, 0, fmt.Errorf("could not upsert model %s: %w", key, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM lm_ngrams WHERE model_id = ?", modelID); err != nil {
		_ = tx.Rollback()
		return nil, 0, fmt.Errorf("failed to clear ngrams for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM lm_transitions WHERE model_id = ?", modelID); err != nil {
		_ = tx.Rollback()
		return nil, 0, fmt.Errorf("failed to clear transitions for model %d: %w", modelID, err)
	}

	return tx, modelID, nil
}
