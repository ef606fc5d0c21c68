package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CTAG07/wikilm/pkg/store"
)

type Server struct {
	cm       *ConfigManager
	db       *sql.DB
	logger   *slog.Logger
	store    *store.Store
	cache    *ModelCache
	authAPI  *AuthAPI
	modelAPI *ModelsAPI
	lmAPI    *LanguageModelAPI
	statsAPI *StatsAPI
	apiMux   *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	config := cm.Get()

	st, err := store.New(db)
	if err != nil {
		return nil, fmt.Errorf("error creating model store: %w", err)
	}
	st.SetLogger(logger)

	var dir *store.Dir
	if config.Server.ModelsDir != "" {
		dir = store.NewDir(config.Server.ModelsDir)
		dir.SetLogger(logger)
	}
	cache := NewModelCache(st, dir, config.Models.MaxCachedModels, logger)

	// api initialization
	authAPI := NewAuthAPI(db, logger)
	statsAPI := NewStatsAPI(db, st, cache, logger)
	modelAPI := NewModelsAPI(st, cache, cm, logger)
	lmAPI := NewLanguageModelAPI(cache, cm, statsAPI, logger)
	serverAPI := NewServerAPI(cm, cache, actionChan, logger)

	server := &Server{
		cm:       cm,
		db:       db,
		logger:   logger,
		store:    st,
		cache:    cache,
		authAPI:  authAPI,
		modelAPI: modelAPI,
		lmAPI:    lmAPI,
		statsAPI: statsAPI,
		apiMux:   http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	authAPI.RegisterRoutes(apiMux)
	modelAPI.RegisterRoutes(apiMux)
	lmAPI.RegisterRoutes(apiMux)
	statsAPI.RegisterRoutes(apiMux)
	serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	authedAPI := authAPI.Authenticate(apiMux)
	// ... except for the health check, which is unauthed so something like docker can use it
	server.apiMux.HandleFunc("/api/health", serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", authedAPI)

	return server, nil
}

// Handler returns the root handler of the API server.
func (s *Server) Handler() http.Handler {
	return s.apiMux
}

// Close releases the store's prepared statements. The database is owned by
// the caller.
func (s *Server) Close() {
	s.store.Close()
}
