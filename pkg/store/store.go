package store

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the necessary tables in the provided database.
// This function should be called once on a new database before any other
// operations are performed. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS lm_models (
    model_id    INTEGER PRIMARY KEY,
    model_kind  TEXT    NOT NULL,
    lang        TEXT    NOT NULL,
    model_date  TEXT    NOT NULL,
    model_order INTEGER NOT NULL,
    variant     TEXT    NOT NULL,
    metadata    TEXT    NOT NULL DEFAULT '{}',
    UNIQUE (model_kind, lang, model_date, model_order, variant)
);
`
		schemaNGrams = `
CREATE TABLE IF NOT EXISTS lm_ngrams (
    model_id  INTEGER NOT NULL,
    row_id    INTEGER NOT NULL,
    ngram     TEXT    NOT NULL,
    frequency INTEGER NOT NULL,
    PRIMARY KEY (model_id, row_id)
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS lm_transitions (
    model_id    INTEGER NOT NULL,
    row_id      INTEGER NOT NULL,
    context     TEXT    NOT NULL,
    next_token  TEXT    NOT NULL,
    probability REAL    NOT NULL,
    PRIMARY KEY (model_id, row_id)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaNGrams); err != nil {
		return fmt.Errorf("could not create ngrams schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store is a SQLite-backed repository of model tables. It holds the
// database connection and prepared SQL statements for efficient access.
// All methods are safe for concurrent use.
type Store struct {
	db                   *sql.DB
	stmtGetModelInfo     *sql.Stmt
	stmtGetModels        *sql.Stmt
	stmtUpsertModel      *sql.Stmt
	stmtGetNGrams        *sql.Stmt
	stmtGetTransitions   *sql.Stmt
	stmtPruneNGrams      *sql.Stmt
	stmtPruneTransitions *sql.Stmt
	stmtNGramStats       *sql.Stmt
	stmtTransitionStats  *sql.Stmt
	stmtCountNGrams      *sql.Stmt
	stmtCountTransitions *sql.Stmt
	logger               *slog.Logger
}

// New creates and returns a new Store. It pre-compiles all necessary SQL
// statements, returning an error if any preparation fails.
func New(db *sql.DB) (*Store, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, metadata FROM lm_models WHERE model_kind = ? AND lang = ? AND model_date = ? AND model_order = ? AND variant = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_kind, lang, model_date, model_order, variant, metadata FROM lm_models ORDER BY model_kind, lang, model_date, model_order, variant;`)
	if err != nil {
		return nil, err
	}

	stmtUpsertModel, err := db.Prepare(`INSERT INTO lm_models (model_kind, lang, model_date, model_order, variant, metadata) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(model_kind, lang, model_date, model_order, variant) DO UPDATE SET metadata = excluded.metadata RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetNGrams, err := db.Prepare(`SELECT ngram, frequency FROM lm_ngrams WHERE model_id = ? ORDER BY row_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`SELECT context, next_token, probability FROM lm_transitions WHERE model_id = ? ORDER BY row_id;`)
	if err != nil {
		return nil, err
	}

	stmtPruneNGrams, err := db.Prepare(`DELETE FROM lm_ngrams WHERE model_id = ? AND frequency <= ?;`)
	if err != nil {
		return nil, err
	}

	stmtPruneTransitions, err := db.Prepare(`DELETE FROM lm_transitions WHERE model_id = ? AND probability <= ?;`)
	if err != nil {
		return nil, err
	}

	stmtNGramStats, err := db.Prepare(`SELECT COUNT(*), coalesce(SUM(frequency), 0) FROM lm_ngrams WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtTransitionStats, err := db.Prepare(`SELECT COUNT(*), COUNT(DISTINCT context), coalesce(SUM(probability), 0) FROM lm_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtCountNGrams, err := db.Prepare(`SELECT COUNT(*) FROM lm_ngrams;`)
	if err != nil {
		return nil, err
	}

	stmtCountTransitions, err := db.Prepare(`SELECT COUNT(*) FROM lm_transitions;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                   db,
		stmtGetModelInfo:     stmtGetModelInfo,
		stmtGetModels:        stmtGetModels,
		stmtUpsertModel:      stmtUpsertModel,
		stmtGetNGrams:        stmtGetNGrams,
		stmtGetTransitions:   stmtGetTransitions,
		stmtPruneNGrams:      stmtPruneNGrams,
		stmtPruneTransitions: stmtPruneTransitions,
		stmtNGramStats:       stmtNGramStats,
		stmtTransitionStats:  stmtTransitionStats,
		stmtCountNGrams:      stmtCountNGrams,
		stmtCountTransitions: stmtCountTransitions,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It should be
// called when the Store is no longer needed to free up database resources.
// The database itself is left open.
func (s *Store) Close() {
	_ = s.stmtGetModelInfo.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtUpsertModel.Close()
	_ = s.stmtGetNGrams.Close()
	_ = s.stmtGetTransitions.Close()
	_ = s.stmtPruneNGrams.Close()
	_ = s.stmtPruneTransitions.Close()
	_ = s.stmtNGramStats.Close()
	_ = s.stmtTransitionStats.Close()
	_ = s.stmtCountNGrams.Close()
	_ = s.stmtCountTransitions.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}
