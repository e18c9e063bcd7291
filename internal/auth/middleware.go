package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Error messages returned to API clients.
const (
	MsgMissingHeader = "Missing Authorization Header"
	MsgBadHeader     = "Bad Authorization header. Expected 'Authorization: Bearer <JWT>'"
	MsgExpired       = "Token has expired"
	MsgInvalid       = "Token is invalid"
)

// Middleware rejects requests without a valid bearer token and stores the
// token subject in the request context.
func (i *Issuer) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeMsg(w, http.StatusUnauthorized, MsgMissingHeader)
				return
			}

			scheme, value, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
				writeMsg(w, http.StatusUnprocessableEntity, MsgBadHeader)
				return
			}

			claims, err := i.Verify(strings.TrimSpace(value))
			switch {
			case errors.Is(err, ErrTokenExpired):
				writeMsg(w, http.StatusUnauthorized, MsgExpired)
				return
			case err != nil:
				logger.Debug("rejected access token", "path", r.URL.Path, "error", err)
				writeMsg(w, http.StatusUnprocessableEntity, MsgInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Subject)))
		})
	}
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
