package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shaharia-lab/cryptodash/internal/auth"
	"github.com/shaharia-lab/cryptodash/internal/storage"
)

const maxLoginBody = 64 << 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin issues an access token for any non-empty credentials.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "Missing username or password")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeMsg(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	tok, err := s.issuer.Issue(req.Username)
	if err != nil {
		s.logger.Error("issuing access token", "user", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.metrics.ObserveLogin()

	if s.logins != nil {
		rec := storage.LoginRecord{
			Username:   tok.Subject,
			TokenID:    tok.ID,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
			IssuedAt:   tok.IssuedAt,
			ExpiresAt:  tok.ExpiresAt,
		}
		if err := s.logins.RecordLogin(r.Context(), rec); err != nil {
			s.logger.Warn("recording login audit", "user", req.Username, "error", err)
		}
	}

	s.logger.Info("user logged in", "user", req.Username, "token_id", tok.ID)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": tok.Value})
}

// handleListLogins returns the caller's recent logins.
func (s *Server) handleListLogins(w http.ResponseWriter, r *http.Request) {
	if s.logins == nil {
		writeJSON(w, http.StatusOK, []storage.LoginRecord{})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	user, _ := auth.Identity(r.Context())
	records, err := s.logins.ListLogins(r.Context(), user, limit)
	if err != nil {
		s.logger.Error("listing logins", "user", user, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if records == nil {
		records = []storage.LoginRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
