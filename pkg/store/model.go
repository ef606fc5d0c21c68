package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

// ModelInfo holds the identity of a stored table and its published
// metadata, decoded as a generic JSON object.
type ModelInfo struct {
	Id       int            `json:"id"`
	Key      artifact.Key   `json:"key"`
	Metadata map[string]any `json:"metadata"`
}

// ExportedModel is the serializable representation of a stored table,
// used for JSON-based import and export. Exactly one of NGrams and
// Transitions is populated, according to Key.Kind.
type ExportedModel struct {
	Key         artifact.Key        `json:"key"`
	Metadata    json.RawMessage     `json:"metadata"`
	NGrams      []ngram.Entry       `json:"ngrams,omitempty"`
	Transitions []markov.Transition `json:"transitions,omitempty"`
}

// ModelInfos retrieves every stored model, ordered by key.
func (s *Store) ModelInfos(ctx context.Context) ([]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var models []ModelInfo
	for rows.Next() {
		var info ModelInfo
		var kind, metadata string
		if err = rows.Scan(&info.Id, &kind, &info.Key.Lang, &info.Key.Date, &info.Key.Order, &info.Key.Variant, &metadata); err != nil {
			return nil, err
		}
		info.Key.Kind = artifact.Kind(kind)
		if err = json.Unmarshal([]byte(metadata), &info.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for model %d: %w", info.Id, err)
		}
		models = append(models, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// ModelInfo retrieves a single model. It returns an error wrapping
// artifact.ErrNotFound if no model is stored under the key.
func (s *Store) ModelInfo(ctx context.Context, key artifact.Key) (ModelInfo, error) {
	id, metadata, err := s.lookup(ctx, key)
	if err != nil {
		return ModelInfo{}, err
	}
	info := ModelInfo{Id: id, Key: key.Normalize()}
	if err = json.Unmarshal([]byte(metadata), &info.Metadata); err != nil {
		return ModelInfo{}, fmt.Errorf("corrupt metadata for model %d: %w", id, err)
	}
	return info, nil
}

// lookup resolves a key to its model id and raw metadata.
func (s *Store) lookup(ctx context.Context, key artifact.Key) (int, string, error) {
	key = key.Normalize()
	var id int
	var metadata string
	err := s.stmtGetModelInfo.QueryRowContext(ctx, string(key.Kind), key.Lang, key.Date, key.Order, key.Variant).Scan(&id, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: %s", artifact.ErrNotFound, key)
	}
	if err != nil {
		return 0, "", fmt.Errorf("could not look up model %s: %w", key, err)
	}
	return id, metadata, nil
}

// RemoveModel deletes a model and all of its rows from the database. The
// operation is performed within a transaction. Removing a model that does
// not exist is not an error.
func (s *Store) RemoveModel(ctx context.Context, key artifact.Key) error {
	key = key.Normalize()
	id, _, err := s.lookup(ctx, key)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM lm_ngrams WHERE model_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove ngrams for model %d: %w", id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM lm_transitions WHERE model_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM lm_models WHERE model_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_key", key.String()),
		slog.Int("model_id", id),
	)

	return tx.Commit()
}

// ExportModel serializes a stored model into JSON and writes it to the
// provided io.Writer. This is useful for backups or for transferring models.
func (s *Store) ExportModel(ctx context.Context, key artifact.Key, w io.Writer) error {
	key = key.Normalize()
	_, metadata, err := s.lookup(ctx, key)
	if err != nil {
		return err
	}

	exported := ExportedModel{Key: key, Metadata: json.RawMessage(metadata)}
	var rowCount int
	switch key.Kind {
	case artifact.KindNGram:
		if exported.NGrams, _, err = s.LoadNGrams(ctx, key); err != nil {
			return err
		}
		rowCount = len(exported.NGrams)
	case artifact.KindMarkov:
		if exported.Transitions, _, err = s.LoadTransitions(ctx, key); err != nil {
			return err
		}
		rowCount = len(exported.Transitions)
	default:
		return fmt.Errorf("cannot export model of kind %q", key.Kind)
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_key", key.String()),
		slog.Int("rows_exported", rowCount),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportModel reads a JSON representation of a model from an io.Reader and
// stores it, replacing any table already stored under the same key.
func (s *Store) ImportModel(ctx context.Context, r io.Reader) (artifact.Key, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return artifact.Key{}, fmt.Errorf("failed to decode json model: %w", err)
	}
	key := imported.Key.Normalize()
	if key.Lang == "" {
		return key, errors.New("imported model has no language")
	}

	switch key.Kind {
	case artifact.KindNGram:
		var meta ngram.Metadata
		if err := decodeMetadata(imported.Metadata, &meta); err != nil {
			return key, err
		}
		return key, s.PutNGrams(ctx, key, imported.NGrams, meta)
	case artifact.KindMarkov:
		var meta markov.Metadata
		if err := decodeMetadata(imported.Metadata, &meta); err != nil {
			return key, err
		}
		return key, s.PutTransitions(ctx, key, imported.Transitions, meta)
	default:
		return key, fmt.Errorf("cannot import model of kind %q", key.Kind)
	}
}

func decodeMetadata(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode model metadata: %w", err)
	}
	return nil
}
