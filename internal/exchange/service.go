package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shaharia-lab/cryptodash/internal/metrics"
)

// CacheKey is the cache entry holding the latest snapshot.
const CacheKey = "crypto_data"

// Fetcher retrieves a fresh snapshot from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// Service serves snapshots, preferring the cache over upstream requests.
// A nil cache disables caching.
type Service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Registry
}

// NewService creates a Service.
func NewService(fetcher Fetcher, cache Cache, ttl time.Duration, logger *slog.Logger, reg *metrics.Registry) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: reg,
	}
}

// Get returns the cached snapshot when present, otherwise fetches and
// caches a fresh one. Cache failures are logged and never fail the call.
func (s *Service) Get(ctx context.Context) (*Snapshot, error) {
	if snap, ok := s.cached(ctx); ok {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches a fresh snapshot and stores it in the cache.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.logger.Error("fetching exchange data", "error", err)
		return nil, err
	}
	s.store(ctx, snap)
	return snap, nil
}

func (s *Service) cached(ctx context.Context) (*Snapshot, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, CacheKey)
	switch {
	case errors.Is(err, ErrCacheMiss):
		s.metrics.ObserveCache(metrics.CacheMiss)
		return nil, false
	case err != nil:
		s.metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("reading exchange data cache", "error", err)
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("decoding cached exchange data", "error", err)
		return nil, false
	}
	s.metrics.ObserveCache(metrics.CacheHit)
	return &snap, true
}

func (s *Service) store(ctx context.Context, snap *Snapshot) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("encoding exchange data", "error", err)
		return
	}
	if err := s.cache.Set(ctx, CacheKey, data, s.ttl); err != nil {
		s.logger.Warn("writing exchange data cache", "error", err)
	}
}
