package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const defaultListLimit = 50

// SQLiteLoginStore implements LoginStore backed by SQLite.
type SQLiteLoginStore struct {
	db *sql.DB
}

// NewSQLiteLoginStore returns a new SQLiteLoginStore.
func NewSQLiteLoginStore(db *sql.DB) *SQLiteLoginStore {
	return &SQLiteLoginStore{db: db}
}

// RecordLogin inserts an audit record.
func (s *SQLiteLoginStore) RecordLogin(ctx context.Context, rec LoginRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_audit (username, token_id, remote_addr, user_agent, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Username, rec.TokenID, rec.RemoteAddr, rec.UserAgent,
		rec.IssuedAt.UTC(), rec.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting login audit record: %w", err)
	}
	return nil
}

// ListLogins returns the most recent records ordered by issued_at descending.
func (s *SQLiteLoginStore) ListLogins(ctx context.Context, username string, limit int) (_ []LoginRecord, err error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, token_id, remote_addr, user_agent, issued_at, expires_at
		FROM login_audit
		WHERE ? = '' OR username = ?
		ORDER BY issued_at DESC, id DESC
		LIMIT ?`, username, username, limit)
	if err != nil {
		return nil, fmt.Errorf("querying login audit: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	var records []LoginRecord
	for rows.Next() {
		var r LoginRecord
		if err := rows.Scan(&r.ID, &r.Username, &r.TokenID, &r.RemoteAddr, &r.UserAgent,
			&r.IssuedAt, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning login audit row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating login audit rows: %w", err)
	}
	return records, nil
}
