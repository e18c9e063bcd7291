package api

import (
	"net/http"

	"github.com/shaharia-lab/cryptodash/internal/auth"
)

func (s *Server) handleExchangeData(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.Identity(r.Context())
	s.logger.Info("fetching exchange data", "user", user)

	snap, err := s.exchangeSvc.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch cryptocurrency data")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
