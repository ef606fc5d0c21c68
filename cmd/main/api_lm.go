package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

// LanguageModelAPI serves queries against the cached n-gram and Markov
// models.
type LanguageModelAPI struct {
	cache  *ModelCache
	cm     *ConfigManager
	stats  *StatsAPI
	logger *slog.Logger
}

// NewLanguageModelAPI creates a new instance of the LanguageModelAPI.
func NewLanguageModelAPI(cache *ModelCache, cm *ConfigManager, stats *StatsAPI, logger *slog.Logger) *LanguageModelAPI {
	return &LanguageModelAPI{
		cache:  cache,
		cm:     cm,
		stats:  stats,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for the /api/ngram and /api/markov endpoints.
func (a *LanguageModelAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ngram/score", a.handleScore)
	mux.HandleFunc("/api/ngram/predict", a.handlePredict)
	mux.HandleFunc("/api/markov/generate", a.handleGenerate)
	mux.HandleFunc("/api/markov/transitions", a.handleTransitions)
}

// ModelSelector picks the table a query runs against. Order is the gram
// size for n-gram queries and the context depth for Markov queries.
type ModelSelector struct {
	Lang    string `json:"lang"`
	Date    string `json:"date"`
	Variant string `json:"variant"`
	Order   int    `json:"order"`
}

type ScoreRequest struct {
	ModelSelector
	Text string `json:"text"`
}

// ScoreResponse carries a nil Score when the text is shorter than the gram
// size, since JSON has no negative infinity.
type ScoreResponse struct {
	Score   *float64 `json:"score"`
	Short   bool     `json:"short"`
	Variant string   `json:"variant"`
}

type PredictRequest struct {
	ModelSelector
	Context string `json:"context"`
	TopK    int    `json:"top_k"`
}

type PredictResponse struct {
	Predictions []ngram.Prediction `json:"predictions"`
	Variant     string             `json:"variant"`
}

type GenerateRequest struct {
	ModelSelector
	Length int      `json:"length"`
	Seed   []string `json:"seed"`
}

type GenerateResponse struct {
	Id        string   `json:"id"`
	Text      string   `json:"text"`
	Tokens    []string `json:"tokens"`
	Truncated bool     `json:"truncated"`
	Variant   string   `json:"variant"`
}

type TransitionsRequest struct {
	ModelSelector
	Context []string `json:"context"`
}

type TransitionsResponse struct {
	Transitions map[string]float64 `json:"transitions"`
	Variant     string             `json:"variant"`
}

func (a *LanguageModelAPI) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !a.decodeQuery(w, r, &req) {
		return
	}
	key := a.key(artifact.KindNGram, req.ModelSelector)
	m, ok := a.ngramModel(w, r, key)
	if !ok {
		return
	}

	resp := ScoreResponse{Variant: m.Variant()}
	score := m.Score(req.Text)
	if math.IsInf(score, -1) {
		resp.Short = true
	} else {
		resp.Score = &score
	}
	a.stats.RecordQuery(r.Context(), key, "score")
	respondWithJSON(w, http.StatusOK, resp)
}

func (a *LanguageModelAPI) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !a.decodeQuery(w, r, &req) {
		return
	}
	if maxTopK := a.cm.Get().Models.MaxTopK; maxTopK > 0 && req.TopK > maxTopK {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("top_k must be at most %d", maxTopK))
		return
	}
	key := a.key(artifact.KindNGram, req.ModelSelector)
	m, ok := a.ngramModel(w, r, key)
	if !ok {
		return
	}

	predictions := m.PredictNext(req.Context, req.TopK)
	if predictions == nil {
		predictions = []ngram.Prediction{}
	}
	a.stats.RecordQuery(r.Context(), key, "predict")
	respondWithJSON(w, http.StatusOK, PredictResponse{Predictions: predictions, Variant: m.Variant()})
}

func (a *LanguageModelAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !a.decodeQuery(w, r, &req) {
		return
	}
	limits := a.cm.Get().Models
	if limits.MaxGenerateLength > 0 && req.Length > limits.MaxGenerateLength {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("length must be at most %d", limits.MaxGenerateLength))
		return
	}
	key := a.key(artifact.KindMarkov, req.ModelSelector)
	chain, ok := a.chain(w, r, key)
	if !ok {
		return
	}

	ctx := r.Context()
	if limits.GenerateTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(limits.GenerateTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	toks := make([]string, 0, max(req.Length, 0)+chain.Depth())
	for token := range chain.GenerateStream(ctx, req.Length, req.Seed) {
		toks = append(toks, token)
	}
	truncated := ctx.Err() != nil
	if truncated {
		a.logger.Warn("Generation stopped early", "model_key", key.String(), "tokens", len(toks), "error", ctx.Err())
	}

	a.stats.RecordQuery(r.Context(), key, "generate")
	respondWithJSON(w, http.StatusOK, GenerateResponse{
		Id:        uuid.NewString(),
		Text:      strings.Join(toks, " "),
		Tokens:    toks,
		Truncated: truncated,
		Variant:   chain.Variant(),
	})
}

func (a *LanguageModelAPI) handleTransitions(w http.ResponseWriter, r *http.Request) {
	var req TransitionsRequest
	if !a.decodeQuery(w, r, &req) {
		return
	}
	key := a.key(artifact.KindMarkov, req.ModelSelector)
	chain, ok := a.chain(w, r, key)
	if !ok {
		return
	}

	a.stats.RecordQuery(r.Context(), key, "transitions")
	respondWithJSON(w, http.StatusOK, TransitionsResponse{
		Transitions: chain.GetTransitions(req.Context),
		Variant:     chain.Variant(),
	})
}

// decodeQuery checks the method and scope shared by every query endpoint
// and decodes the body into v. It reports whether the handler may go on.
func (a *LanguageModelAPI) decodeQuery(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	if !requireScope(w, r, scopeQuery) {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return false
	}
	return true
}

func (a *LanguageModelAPI) key(kind artifact.Kind, sel ModelSelector) artifact.Key {
	models := a.cm.Get().Models
	key := artifact.Key{Kind: kind, Lang: sel.Lang, Date: sel.Date, Order: sel.Order, Variant: sel.Variant}
	if key.Date == "" {
		key.Date = models.DefaultDate
	}
	if key.Variant == "" {
		key.Variant = models.DefaultVariant
	}
	return key.Normalize()
}

func (a *LanguageModelAPI) ngramModel(w http.ResponseWriter, r *http.Request, key artifact.Key) (*ngram.Model, bool) {
	if key.Lang == "" {
		respondWithError(w, http.StatusBadRequest, "lang is required")
		return nil, false
	}
	m, err := a.cache.NGram(r.Context(), key)
	if err != nil {
		a.respondLoadError(w, key, err)
		return nil, false
	}
	return m, true
}

func (a *LanguageModelAPI) chain(w http.ResponseWriter, r *http.Request, key artifact.Key) (*markov.Chain, bool) {
	if key.Lang == "" {
		respondWithError(w, http.StatusBadRequest, "lang is required")
		return nil, false
	}
	c, err := a.cache.Chain(r.Context(), key)
	if err != nil {
		a.respondLoadError(w, key, err)
		return nil, false
	}
	return c, true
}

func (a *LanguageModelAPI) respondLoadError(w http.ResponseWriter, key artifact.Key, err error) {
	switch {
	case errors.Is(err, ngram.ErrUnsupportedOrder), errors.Is(err, markov.ErrUnsupportedDepth):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, artifact.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error("Failed to load model", "model_key", key.String(), "error", err)
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	}
}
