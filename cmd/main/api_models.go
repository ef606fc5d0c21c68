package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/store"
)

// ModelsAPI holds the dependencies for the model management API handlers.
type ModelsAPI struct {
	store  *store.Store
	cache  *ModelCache
	cm     *ConfigManager
	logger *slog.Logger
}

// NewModelsAPI creates a new instance of the ModelsAPI.
func NewModelsAPI(st *store.Store, cache *ModelCache, cm *ConfigManager, logger *slog.Logger) *ModelsAPI {
	return &ModelsAPI{
		store:  st,
		cache:  cache,
		cm:     cm,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/models endpoints.
func (m *ModelsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/models", m.handleListModels)
	mux.HandleFunc("/api/models/import", m.handleImport)
	mux.HandleFunc("/api/models/", m.handleModelByKey)
}

// PruneRequest is the body of a prune call. MinFrequency applies to n-gram
// tables and MinProbability to Markov tables.
type PruneRequest struct {
	MinFrequency   int64   `json:"min_frequency"`
	MinProbability float64 `json:"min_probability"`
}

func (m *ModelsAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeModelsRead) {
		return
	}
	models, err := m.store.ModelInfos(r.Context())
	if err != nil {
		m.logger.Error("Failed to get model infos", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
		return
	}
	if models == nil {
		models = []store.ModelInfo{}
	}
	respondWithJSON(w, http.StatusOK, models)
}

func (m *ModelsAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, scopeModelsWrite) {
		return
	}
	key, err := m.store.ImportModel(r.Context(), r.Body)
	if err != nil {
		m.logger.Error("Failed to import model", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to import model: %v", err))
		return
	}
	m.cache.Invalidate(key.Kind, key.Lang)
	info, err := m.store.ModelInfo(r.Context(), key)
	if err != nil {
		m.logger.Error("Failed to retrieve imported model", "model_key", key.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to verify import: %v", err))
		return
	}
	respondWithJSON(w, http.StatusCreated, info)
}

// handleModelByKey routes actions for a specific model:
// /api/models/{kind}/{lang}/{order}[/export|/prune]. The date and variant
// are taken from the query string and default to the configured values.
func (m *ModelsAPI) handleModelByKey(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/models/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 3 || len(parts) > 4 {
		respondWithError(w, http.StatusNotFound, "Expected /api/models/{kind}/{lang}/{order}")
		return
	}

	key, err := m.parseKey(r, parts[0], parts[1], parts[2])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(parts) == 3 {
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", "DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		m.removeModel(w, r, key)
		return
	}

	switch parts[3] {
	case "export":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		m.exportModel(w, r, key)
	case "prune":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		m.pruneModel(w, r, key)
	default:
		respondWithError(w, http.StatusNotFound, "Unknown model action")
	}
}

func (m *ModelsAPI) parseKey(r *http.Request, kindStr, lang, orderStr string) (artifact.Key, error) {
	kind, err := artifact.ParseKind(kindStr)
	if err != nil {
		return artifact.Key{}, err
	}
	order, err := strconv.Atoi(orderStr)
	if err != nil {
		return artifact.Key{}, fmt.Errorf("invalid order %q", orderStr)
	}
	models := m.cm.Get().Models
	key := artifact.Key{
		Kind:    kind,
		Lang:    lang,
		Date:    r.URL.Query().Get("date"),
		Order:   order,
		Variant: r.URL.Query().Get("variant"),
	}
	if key.Date == "" {
		key.Date = models.DefaultDate
	}
	if key.Variant == "" {
		key.Variant = models.DefaultVariant
	}
	return key.Normalize(), nil
}

func (m *ModelsAPI) removeModel(w http.ResponseWriter, r *http.Request, key artifact.Key) {
	if !requireScope(w, r, scopeModelsWrite) {
		return
	}
	if _, err := m.store.ModelInfo(r.Context(), key); err != nil {
		m.respondStoreError(w, key, err)
		return
	}
	if err := m.store.RemoveModel(r.Context(), key); err != nil {
		m.logger.Error("Failed to remove model", "model_key", key.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove model: %v", err))
		return
	}
	m.cache.Invalidate(key.Kind, key.Lang)
	w.WriteHeader(http.StatusNoContent)
}

func (m *ModelsAPI) exportModel(w http.ResponseWriter, r *http.Request, key artifact.Key) {
	if !requireScope(w, r, scopeModelsRead) {
		return
	}
	if _, err := m.store.ModelInfo(r.Context(), key); err != nil {
		m.respondStoreError(w, key, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key.Filename()))
	if err := m.store.ExportModel(r.Context(), key, w); err != nil {
		// Headers are already sent; all that is left is to log.
		m.logger.Error("Failed to export model", "model_key", key.String(), "error", err)
	}
}

func (m *ModelsAPI) pruneModel(w http.ResponseWriter, r *http.Request, key artifact.Key) {
	if !requireScope(w, r, scopeModelsWrite) {
		return
	}
	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	var removed int64
	var err error
	switch key.Kind {
	case artifact.KindNGram:
		removed, err = m.store.PruneNGrams(r.Context(), key, req.MinFrequency)
	case artifact.KindMarkov:
		removed, err = m.store.PruneTransitions(r.Context(), key, req.MinProbability)
	}
	if err != nil {
		m.respondStoreError(w, key, err)
		return
	}
	m.cache.Invalidate(key.Kind, key.Lang)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"key":          key,
		"rows_removed": removed,
	})
}

func (m *ModelsAPI) respondStoreError(w http.ResponseWriter, key artifact.Key, err error) {
	if errors.Is(err, artifact.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Model not found")
		return
	}
	m.logger.Error("Store operation failed", "model_key", key.String(), "error", err)
	respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
}
