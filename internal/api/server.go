// Package api implements the backend REST handlers: login, exchange data
// and the login audit.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/cryptodash/internal/auth"
	"github.com/shaharia-lab/cryptodash/internal/exchange"
	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/storage"
)

// ExchangeService provides the combined exchange snapshot.
type ExchangeService interface {
	Get(ctx context.Context) (*exchange.Snapshot, error)
}

// Server holds all dependencies for the REST API handlers.
type Server struct {
	exchangeSvc ExchangeService
	issuer      *auth.Issuer
	logins      storage.LoginStore
	logger      *slog.Logger
	metrics     *metrics.Registry
}

// New creates a new API Server. logins may be nil to disable the login audit.
func New(exchangeSvc ExchangeService, issuer *auth.Issuer, logins storage.LoginStore, logger *slog.Logger, reg *metrics.Registry) *Server {
	return &Server{
		exchangeSvc: exchangeSvc,
		issuer:      issuer,
		logins:      logins,
		logger:      logger,
		metrics:     reg,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/auth/login", s.handleLogin)
	r.Get("/version", s.handleVersion)

	r.Group(func(r chi.Router) {
		r.Use(s.issuer.Middleware(s.logger))
		r.Get("/exchange-data", s.handleExchangeData)
		r.Get("/auth/logins", s.handleListLogins)
	})
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}
