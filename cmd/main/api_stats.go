package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/store"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS stats_queries (
    model_key     TEXT     NOT NULL,
    operation     TEXT     NOT NULL,
    total_queries INTEGER  NOT NULL DEFAULT 1,
    first_seen    DATETIME NOT NULL,
    last_seen     DATETIME NOT NULL,
    PRIMARY KEY (model_key, operation)
);
`

// GlobalStatsSummary provides a high-level overview of stored models and
// the queries served.
type GlobalStatsSummary struct {
	TotalQueries      int64 `json:"total_queries"`
	ModelsQueried     int64 `json:"models_queried"`
	StoredModels      int   `json:"stored_models"`
	StoredNGrams      int   `json:"stored_ngrams"`
	StoredTransitions int   `json:"stored_transitions"`
	CachedModels      int   `json:"cached_models"`
}

// ModelQueryStats is one row of the top models listing.
type ModelQueryStats struct {
	ModelKey     string    `json:"model_key"`
	Operation    string    `json:"operation"`
	TotalQueries int       `json:"total_queries"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// StatsAPI holds the dependencies for the statistics handlers.
type StatsAPI struct {
	db     *sql.DB
	store  *store.Store
	cache  *ModelCache
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, st *store.Store, cache *ModelCache, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:     db,
		store:  st,
		cache:  cache,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/summary", s.handleSummary)
	mux.HandleFunc("/api/stats/top_models", s.handleTopModels)
	mux.HandleFunc("/api/stats/models", s.handleModelStats)
}

// RecordQuery counts one query of the given operation against key. Failures
// are logged and never fail the query itself.
func (s *StatsAPI) RecordQuery(ctx context.Context, key artifact.Key, operation string) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO stats_queries (model_key, operation, first_seen, last_seen) VALUES (?, ?, ?, ?)
        ON CONFLICT(model_key, operation) DO UPDATE SET total_queries = total_queries + 1, last_seen = ?
    `, key.String(), operation, now, now, now)
	if err != nil {
		s.logger.Warn("Failed to record query", "model_key", key.String(), "operation", operation, "error", err)
	}
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeStatsRead) {
		return
	}
	var summary GlobalStatsSummary
	_ = s.db.QueryRowContext(r.Context(), "SELECT COALESCE(SUM(total_queries), 0) FROM stats_queries").Scan(&summary.TotalQueries)
	_ = s.db.QueryRowContext(r.Context(), "SELECT COUNT(DISTINCT model_key) FROM stats_queries").Scan(&summary.ModelsQueried)

	dbStats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to get store stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	summary.StoredModels = len(dbStats.Models)
	summary.StoredNGrams = dbStats.TotalNGrams
	summary.StoredTransitions = dbStats.TotalTransitions
	summary.CachedModels = s.cache.Len()
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTopModels(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeStatsRead) {
		return
	}
	rows, err := s.db.QueryContext(r.Context(), "SELECT model_key, operation, total_queries, first_seen, last_seen FROM stats_queries ORDER BY total_queries DESC LIMIT 100")
	if err != nil {
		s.logger.Error("Failed to query top models", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	results := make([]ModelQueryStats, 0)
	for rows.Next() {
		var row ModelQueryStats
		if err = rows.Scan(&row.ModelKey, &row.Operation, &row.TotalQueries, &row.FirstSeen, &row.LastSeen); err != nil {
			s.logger.Error("Failed to scan top models", "error", err)
			continue
		}
		results = append(results, row)
	}
	respondWithJSON(w, http.StatusOK, results)
}

// handleModelStats returns the per-table row statistics of the store.
func (s *StatsAPI) handleModelStats(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeStatsRead) {
		return
	}
	dbStats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to get store stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	type modelStats struct {
		Key artifact.Key `json:"key"`
		store.ModelStats
	}
	results := make([]modelStats, 0, len(dbStats.Models))
	for _, info := range dbStats.Models {
		results = append(results, modelStats{Key: info.Key, ModelStats: dbStats.Stats[info.Id]})
	}
	respondWithJSON(w, http.StatusOK, results)
}
