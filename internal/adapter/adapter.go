// Package adapter defines the provider contract for historical bar data:
// one Fetch operation implemented by a closed set of providers, a registry
// that dispatches on the source name, and the two error kinds every
// provider maps its failures onto.
package adapter

import (
	"context"
	"sync"
	"time"
)

// Bar is one raw OHLCV row as returned by a provider, before
// normalization. Fields a provider cannot supply are left zero.
type Bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Request describes one fetch. Zero Start or End means the range is open
// on that side.
type Request struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval string
	Adjusted bool
}

//go:generate mockgen -source=adapter.go -destination=mock/adapter.go -package=mock

// Adapter fetches raw bars for a symbol and date range. Implementations
// return bars in ascending date order and classify every failure as
// *RateLimitError or *AdapterError before returning it.
type Adapter interface {
	Source() string
	Fetch(ctx context.Context, req Request) ([]Bar, error)
}

type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

func (r *Registry) Get(source string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[source]
	if !ok {
		return nil, &AdapterError{Source: source, Msg: "no adapter registered"}
	}
	return a, nil
}

func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]string, 0, len(r.adapters))
	for src := range r.adapters {
		sources = append(sources, src)
	}
	return sources
}
