// Package warmer refreshes a configured watchlist so the cache stays
// ahead of interactive requests.
package warmer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dendrobium123/FeedbackTrader/internal/config"
	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

// Fetcher is the slice of the feed service the warmer needs.
type Fetcher interface {
	GetHistory(ctx context.Context, req feed.Request) (feed.Series, error)
}

// Pruner drops expired cache entries after a warm pass.
type Pruner interface {
	PruneStale(ctx context.Context) (int, error)
}

type Warmer struct {
	fetcher   Fetcher
	watchlist []config.WatchlistEntry
	pruner    Pruner
	logger    *slog.Logger
}

type Option func(*Warmer)

func WithPruner(p Pruner) Option {
	return func(w *Warmer) {
		w.pruner = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Warmer) {
		w.logger = logger
	}
}

func New(fetcher Fetcher, watchlist []config.WatchlistEntry, opts ...Option) *Warmer {
	w := &Warmer{
		fetcher:   fetcher,
		watchlist: watchlist,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run refreshes every watchlist entry. A failed entry is logged and the
// pass moves on; one bad symbol must not starve the rest of the list.
func (w *Warmer) Run(ctx context.Context) {
	start := time.Now()
	refreshed := 0
	for _, entry := range w.watchlist {
		if ctx.Err() != nil {
			w.logger.Warn("warm pass cancelled", "refreshed", refreshed)
			return
		}
		req := feed.Request{
			Symbol:   entry.Symbol,
			Source:   entry.Source,
			Interval: feed.Interval(entry.Interval),
			Adjusted: entry.Adjusted,
			Cache:    true,
			Refresh:  true,
		}
		series, err := w.fetcher.GetHistory(ctx, req)
		if err != nil {
			w.logger.Warn("warm fetch failed",
				"symbol", entry.Symbol, "source", entry.Source, "error", err)
			continue
		}
		refreshed++
		w.logger.Info("warmed series",
			"symbol", entry.Symbol, "source", entry.Source, "bars", len(series.Bars))
	}

	if w.pruner != nil {
		if removed, err := w.pruner.PruneStale(ctx); err != nil {
			w.logger.Warn("prune stale entries failed", "error", err)
		} else if removed > 0 {
			w.logger.Info("pruned stale cache entries", "removed", removed)
		}
	}

	w.logger.Info("warm pass finished",
		"refreshed", refreshed, "entries", len(w.watchlist), "duration", time.Since(start))
}
