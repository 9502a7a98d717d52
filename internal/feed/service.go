package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
)

// Service is the fetch dispatcher: it resolves the adapter for a source,
// applies the cache-or-refresh policy, and returns a normalized Series.
type Service struct {
	registry *adapter.Registry
	store    Store
	logger   *slog.Logger
}

type ServiceOption func(*Service)

// WithLogger sets the logger used for cache and fetch diagnostics.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a dispatcher. A nil store disables caching
// regardless of what requests ask for.
func NewService(registry *adapter.Registry, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		registry: registry,
		store:    store,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Sources() []string {
	return s.registry.Sources()
}

// GetHistory returns historical bars for one symbol. Cache consultation
// happens only when the request enables caching without forcing a
// refresh; a hit is returned as-is with no provider call. Provider
// failures propagate unchanged as *adapter.RateLimitError or
// *adapter.AdapterError, with no retry here. An empty fetch result is a
// valid outcome and is cached like any other, so a provider with no data
// for the range is not hammered on every call.
func (s *Service) GetHistory(ctx context.Context, req Request) (Series, error) {
	if err := req.Validate(); err != nil {
		return Series{}, err
	}

	interval := IntervalDaily
	if req.Interval != "" {
		interval, _ = ParseInterval(string(req.Interval))
	}
	key := Key{Symbol: req.Symbol, Source: req.Source, Interval: interval}

	if req.Cache && !req.Refresh && s.store != nil {
		series, ok, err := s.store.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("cache read failed", "key", key.String(), "error", err)
		case ok:
			s.logger.Debug("cache hit", "key", key.String(), "bars", len(series.Bars))
			return series, nil
		}
	}

	ad, err := s.registry.Get(req.Source)
	if err != nil {
		return Series{}, fmt.Errorf("resolve source: %w", err)
	}

	bars, err := ad.Fetch(ctx, adapter.Request{
		Symbol:   req.Symbol,
		Start:    req.Start,
		End:      req.End,
		Interval: string(interval),
		Adjusted: req.Adjusted,
	})
	if err != nil {
		return Series{}, err
	}

	series := Normalize(req.Symbol, interval, bars)
	s.logger.Info("fetched history", "key", key.String(), "bars", len(series.Bars))

	if req.Cache && s.store != nil {
		if err := s.store.Put(ctx, key, series); err != nil {
			// A failed cache write degrades the next call, not this one.
			s.logger.Warn("cache write failed", "key", key.String(), "error", err)
		}
	}

	return series, nil
}
