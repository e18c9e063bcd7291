package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cryptodash/internal/storage"
)

func TestSQLiteLoginStore(t *testing.T) {
	db, _, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteLoginStore(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		list, err := store.ListLogins(ctx, "", 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("record and list", func(t *testing.T) {
		rec := storage.LoginRecord{
			Username:   "alice",
			TokenID:    "6f1c1f0e-0000-4000-8000-000000000001",
			RemoteAddr: "10.0.0.7",
			UserAgent:  "curl/8.5.0",
			IssuedAt:   base,
			ExpiresAt:  base.Add(time.Hour),
		}
		require.NoError(t, store.RecordLogin(ctx, rec))

		list, err := store.ListLogins(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)

		got := list[0]
		assert.NotZero(t, got.ID)
		assert.Equal(t, rec.Username, got.Username)
		assert.Equal(t, rec.TokenID, got.TokenID)
		assert.Equal(t, rec.RemoteAddr, got.RemoteAddr)
		assert.Equal(t, rec.UserAgent, got.UserAgent)
		assert.True(t, rec.IssuedAt.Equal(got.IssuedAt))
		assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("duplicate token id", func(t *testing.T) {
		err := store.RecordLogin(ctx, storage.LoginRecord{
			Username:  "mallory",
			TokenID:   "6f1c1f0e-0000-4000-8000-000000000001",
			IssuedAt:  base,
			ExpiresAt: base,
		})
		assert.Error(t, err)
	})

	t.Run("ordering, filter and limit", func(t *testing.T) {
		for i := range 5 {
			require.NoError(t, store.RecordLogin(ctx, storage.LoginRecord{
				Username:  "bob",
				TokenID:   fmt.Sprintf("bob-%d", i),
				IssuedAt:  base.Add(time.Duration(i+1) * time.Minute),
				ExpiresAt: base.Add(time.Hour),
			}))
		}

		list, err := store.ListLogins(ctx, "", 3)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "bob-4", list[0].TokenID)
		assert.Equal(t, "bob-2", list[2].TokenID)

		bobs, err := store.ListLogins(ctx, "bob", 0)
		require.NoError(t, err)
		assert.Len(t, bobs, 5)

		alices, err := store.ListLogins(ctx, "alice", 0)
		require.NoError(t, err)
		assert.Len(t, alices, 1)
	})
}
