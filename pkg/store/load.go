package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

// LoadNGrams returns the stored n-gram table for key in row
// order. It implements ngram.Source.
func (s *Store) LoadNGrams(ctx context.Context, key artifact.Key) ([]ngram.Entry, ngram.Metadata, error) {
	key = key.Normalize()
	key.Kind = artifact.KindNGram

	var meta ngram.Metadata
	id, rawMeta, err := s.lookup(ctx, key)
	if err != nil {
		return nil, meta, err
	}
	if err = decodeMetadata(json.RawMessage(rawMeta), &meta); err != nil {
		return nil, meta, err
	}

	rows, err := s.stmtGetNGrams.QueryContext(ctx, id)
	if err != nil {
		return nil, meta, fmt.Errorf("could not query ngrams for model %d: %w", id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	entries := make([]ngram.Entry, 0)
	for rows.Next() {
		var encoded string
		var entry ngram.Entry
		if err = rows.Scan(&encoded, &entry.Frequency); err != nil {
			return nil, meta, err
		}
		if err = json.Unmarshal([]byte(encoded), &entry.NGram); err != nil {
			return nil, meta, fmt.Errorf("corrupt ngram in model %d: %w", id, err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, meta, err
	}
	return entries, meta, nil
}

// LoadTransitions returns the stored transition table for key in its
// stored row order. It implements markov.Source.
func (s *Store) LoadTransitions(ctx context.Context, key artifact.Key) ([]markov.Transition, markov.Metadata, error) {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov

	var meta markov.Metadata
	id, rawMeta, err := s.lookup(ctx, key)
	if err != nil {
		return nil, meta, err
	}
	if err = decodeMetadata(json.RawMessage(rawMeta), &meta); err != nil {
		return nil, meta, err
	}

	rows, err := s.stmtGetTransitions.QueryContext(ctx, id)
	if err != nil {
		return nil, meta, fmt.Errorf("could not query transitions for model %d: %w", id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	transitions := make([]markov.Transition, 0)
	for rows.Next() {
		var encoded string
		var row markov.Transition
		if err = rows.Scan(&encoded, &row.NextToken, &row.Probability); err != nil {
			return nil, meta, err
		}
		if err = json.Unmarshal([]byte(encoded), &row.Context); err != nil {
			return nil, meta, fmt.Errorf("corrupt context in model %d: %w", id, err)
		}
		transitions = append(transitions, row)
	}
	if err = rows.Err(); err != nil {
		return nil, meta, err
	}
	return transitions, meta, nil
}
