package storage

import (
	"context"
	"time"
)

// LoginRecord is one issued access token.
type LoginRecord struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	TokenID    string    `json:"token_id"`
	RemoteAddr string    `json:"remote_addr"`
	UserAgent  string    `json:"user_agent"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LoginStore records successful logins for auditing.
type LoginStore interface {
	RecordLogin(ctx context.Context, rec LoginRecord) error
	// ListLogins returns the most recent records first. A non-empty
	// username restricts the result to that user.
	ListLogins(ctx context.Context, username string, limit int) ([]LoginRecord, error)
}
