package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Scopes are stored as a JSON array per key.
const authSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id          INTEGER  PRIMARY KEY,
    key_hash    TEXT     NOT NULL UNIQUE,
    key_hint    TEXT     NOT NULL,
    scopes      TEXT     NOT NULL,
    description TEXT     NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL,
    last_used   DATETIME
);
`

// authHeader carries the raw API key on every authenticated request.
const authHeader = "wlm-auth"

const apiKeyPrefix = "wlm_"

const (
	scopeAll           = "*"
	scopeModelsRead    = "models:read"
	scopeModelsWrite   = "models:write"
	scopeQuery         = "lm:query"
	scopeStatsRead     = "stats:read"
	scopeServerConfig  = "server:config"
	scopeServerControl = "server:control"
	scopeAuthManage    = "auth:manage"
)

var knownScopes = []string{
	scopeAll,
	scopeModelsRead,
	scopeModelsWrite,
	scopeQuery,
	scopeStatsRead,
	scopeServerConfig,
	scopeServerControl,
	scopeAuthManage,
}

// errLastMasterKey is returned when a delete would leave no key able to
// manage the others.
var errLastMasterKey = errors.New("cannot delete the last key holding the '*' scope")

type grantKey struct{}

// grant is what an authenticated request may do.
type grant struct {
	keyID  int // zero while the API is open
	scopes map[string]struct{}
}

func (g *grant) allows(scope string) bool {
	if g == nil {
		return false
	}
	if _, ok := g.scopes[scopeAll]; ok {
		return true
	}
	_, ok := g.scopes[scope]
	return ok
}

func (g *grant) sortedScopes() []string {
	out := make([]string, 0, len(g.scopes))
	for s := range g.scopes {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func grantFrom(ctx context.Context) *grant {
	g, _ := ctx.Value(grantKey{}).(*grant)
	return g
}

// hasScope reports whether the request was authenticated with scope.
func hasScope(r *http.Request, scope string) bool {
	return grantFrom(r.Context()).allows(scope)
}

// requireScope answers 403 and returns false unless the request holds scope.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	if hasScope(r, scope) {
		return true
	}
	respondWithError(w, http.StatusForbidden, fmt.Sprintf("Forbidden: requires '%s' scope", scope))
	return false
}

// AuthAPI issues, lists and revokes API keys and authenticates requests
// with them.
type AuthAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupAuthSchema(db *sql.DB) error {
	_, err := db.Exec(authSchema)
	return err
}

func NewAuthAPI(db *sql.DB, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{db: db, logger: logger}
}

func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/me", a.handleCheckMe)
	mux.HandleFunc("/api/auth/keys", a.handleKeys)
	mux.HandleFunc("/api/auth/keys/", a.handleKeyByID)
}

// APIKeyInfo describes a stored key. The raw key is never stored, only its
// hash and a short hint for telling keys apart.
type APIKeyInfo struct {
	ID          int        `json:"id"`
	Hint        string     `json:"hint"`
	Scopes      []string   `json:"scopes"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

type CreateKeyRequest struct {
	Scopes      []string `json:"scopes"`
	Description string   `json:"description"`
}

// CreateKeyResponse is the only response that ever carries the raw key.
type CreateKeyResponse struct {
	ID     int      `json:"id"`
	RawKey string   `json:"raw_key"`
	Scopes []string `json:"scopes"`
}

// Authenticate resolves the key in the wlm-auth header into a grant. Until
// the first key exists every request is granted "*", so a fresh install
// can issue its first key.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g, status := a.resolve(r)
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), grantKey{}, g)))
	})
}

func (a *AuthAPI) resolve(r *http.Request) (*grant, int) {
	ctx := r.Context()

	var anyKeys bool
	if err := a.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM api_keys)").Scan(&anyKeys); err != nil {
		a.logger.Error("Failed to check for API keys", "error", err)
		return nil, http.StatusInternalServerError
	}
	if !anyKeys {
		return &grant{scopes: map[string]struct{}{scopeAll: {}}}, http.StatusOK
	}

	rawKey := r.Header.Get(authHeader)
	if !strings.HasPrefix(rawKey, apiKeyPrefix) {
		return nil, http.StatusUnauthorized
	}

	var (
		id     int
		scopes string
	)
	err := a.db.QueryRowContext(ctx, "SELECT id, scopes FROM api_keys WHERE key_hash = ?", hashAPIKey(rawKey)).Scan(&id, &scopes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, http.StatusUnauthorized
	}
	if err != nil {
		a.logger.Error("Failed to look up API key", "error", err)
		return nil, http.StatusInternalServerError
	}

	list, err := decodeScopes(scopes)
	if err != nil {
		a.logger.Error("Stored scopes are corrupt", "key_id", id, "error", err)
		return nil, http.StatusInternalServerError
	}
	if _, err = a.db.ExecContext(ctx, "UPDATE api_keys SET last_used = ? WHERE id = ?", time.Now(), id); err != nil {
		a.logger.Warn("Failed to record key use", "key_id", id, "error", err)
	}

	g := &grant{keyID: id, scopes: make(map[string]struct{}, len(list))}
	for _, s := range list {
		g.scopes[s] = struct{}{}
	}
	return g, http.StatusOK
}

func (a *AuthAPI) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listKeys(w, r)
	case http.MethodPost:
		a.createKey(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *AuthAPI) handleKeyByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/auth/keys/"), "/"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Key id must be an integer")
		return
	}
	a.deleteKey(w, r, id)
}

func (a *AuthAPI) handleCheckMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	g := grantFrom(r.Context())
	if g == nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	resp := map[string]any{"scopes": g.sortedScopes()}
	if g.keyID != 0 {
		resp["key_id"] = g.keyID
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (a *AuthAPI) listKeys(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeAuthManage) {
		return
	}

	rows, err := a.db.QueryContext(r.Context(), `SELECT id, key_hint, scopes, description, created_at, last_used FROM api_keys ORDER BY id`)
	if err != nil {
		a.logger.Error("Failed to list API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	defer func() { _ = rows.Close() }()

	keys := []APIKeyInfo{}
	for rows.Next() {
		var (
			info     APIKeyInfo
			scopes   string
			lastUsed sql.NullTime
		)
		if err = rows.Scan(&info.ID, &info.Hint, &scopes, &info.Description, &info.CreatedAt, &lastUsed); err == nil {
			info.Scopes, err = decodeScopes(scopes)
		}
		if err != nil {
			a.logger.Error("Failed to read API key row", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to read keys")
			return
		}
		if lastUsed.Valid {
			info.LastUsed = &lastUsed.Time
		}
		keys = append(keys, info)
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (a *AuthAPI) createKey(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, scopeAuthManage) {
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rawKey, err := generateAPIKey()
	if err != nil {
		a.logger.Error("Failed to generate API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	id, scopes, err := a.insertKey(r.Context(), rawKey, scopes, req.Description)
	if err != nil {
		a.logger.Error("Failed to store API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save new key")
		return
	}
	a.logger.Info("API key created", "key_id", id, "scopes", strings.Join(scopes, ","))
	respondWithJSON(w, http.StatusCreated, CreateKeyResponse{ID: id, RawKey: rawKey, Scopes: scopes})
}

// insertKey stores a new key. The first key ever stored is given "*"
// whatever was asked for, so the server cannot be locked out.
func (a *AuthAPI) insertKey(ctx context.Context, rawKey string, scopes []string, description string) (int, []string, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var anyKeys bool
	if err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM api_keys)").Scan(&anyKeys); err != nil {
		return 0, nil, err
	}
	if !anyKeys {
		scopes = []string{scopeAll}
	}
	encoded, err := json.Marshal(scopes)
	if err != nil {
		return 0, nil, err
	}

	var id int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, key_hint, scopes, description, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		hashAPIKey(rawKey), rawKey[:len(apiKeyPrefix)+6], string(encoded), description, time.Now()).Scan(&id)
	if err != nil {
		return 0, nil, err
	}
	return id, scopes, tx.Commit()
}

func (a *AuthAPI) deleteKey(w http.ResponseWriter, r *http.Request, id int) {
	if !requireScope(w, r, scopeAuthManage) {
		return
	}

	err := a.removeKey(r.Context(), id)
	switch {
	case err == nil:
		a.logger.Info("API key deleted", "key_id", id)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, sql.ErrNoRows):
		respondWithError(w, http.StatusNotFound, "Key not found")
	case errors.Is(err, errLastMasterKey):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		a.logger.Error("Failed to delete API key", "key_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete key")
	}
}

func (a *AuthAPI) removeKey(ctx context.Context, id int) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	if err = tx.QueryRowContext(ctx, "SELECT scopes FROM api_keys WHERE id = ?", id).Scan(&stored); err != nil {
		return err
	}
	scopes, err := decodeScopes(stored)
	if err != nil {
		return err
	}
	if slices.Contains(scopes, scopeAll) {
		masters, err := countMasterKeys(ctx, tx)
		if err != nil {
			return err
		}
		if masters <= 1 {
			return errLastMasterKey
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func countMasterKeys(ctx context.Context, tx *sql.Tx) (int, error) {
	rows, err := tx.QueryContext(ctx, "SELECT scopes FROM api_keys")
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int
	for rows.Next() {
		var stored string
		if err = rows.Scan(&stored); err != nil {
			return 0, err
		}
		scopes, err := decodeScopes(stored)
		if err != nil {
			return 0, err
		}
		if slices.Contains(scopes, scopeAll) {
			n++
		}
	}
	return n, rows.Err()
}

// normalizeScopes rejects unknown scopes and returns the rest sorted and
// without duplicates.
func normalizeScopes(scopes []string) ([]string, error) {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if !slices.Contains(knownScopes, s) {
			return nil, fmt.Errorf("unknown scope %q", s)
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func decodeScopes(stored string) ([]string, error) {
	var scopes []string
	if err := json.Unmarshal([]byte(stored), &scopes); err != nil {
		return nil, fmt.Errorf("could not decode scopes: %w", err)
	}
	return scopes, nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
