package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/cryptodash/internal/exchange"
)

// MockFetcher is a mock implementation of exchange.Fetcher.
type MockFetcher struct {
	mock.Mock
}

//nolint:revive
func (m *MockFetcher) Fetch(ctx context.Context) (*exchange.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.Snapshot), args.Error(1)
}

// MockService is a mock implementation of the exchange data service used by
// the API handlers.
type MockService struct {
	mock.Mock
}

//nolint:revive
func (m *MockService) Get(ctx context.Context) (*exchange.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.Snapshot), args.Error(1)
}
