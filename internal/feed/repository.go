package feed

import "context"

// Store persists normalized series keyed by (symbol, source, interval).
// Get reports a miss with ok=false; errors are reserved for failures the
// caller may want to surface rather than treat as a miss.
type Store interface {
	Get(ctx context.Context, key Key) (series Series, ok bool, err error)
	Put(ctx context.Context, key Key, series Series) error
}
