package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/cryptodash/internal/storage"
)

// MockLoginStore is a mock implementation of storage.LoginStore.
type MockLoginStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockLoginStore) RecordLogin(ctx context.Context, rec storage.LoginRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

//nolint:revive
func (m *MockLoginStore) ListLogins(ctx context.Context, username string, limit int) ([]storage.LoginRecord, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.LoginRecord), args.Error(1)
}
