// Package cache persists normalized series as on-disk artifacts, one per
// (symbol, source, interval) key. Artifacts are written as columnar
// Parquet when possible and fall back to CSV, with an advisory SQLite
// manifest backing the staleness policy.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

// format encodes and decodes one artifact file type. Formats are tried
// in order, so the first entry is the preferred representation.
type format interface {
	ext() string
	write(path string, bars []feed.Bar) error
	read(path string) ([]feed.Bar, error)
}

// DiskStore implements feed.Store on the local filesystem. Artifacts
// live at <root>/<source>/<symbol>_<interval>.<ext>. Writes go to a
// .tmp sibling and are renamed into place so readers never observe a
// partial file.
type DiskStore struct {
	root     string
	formats  []format
	manifest *Manifest
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*DiskStore)

// WithRoot sets the directory artifacts are stored under. Defaults to
// ./data relative to the working directory.
func WithRoot(dir string) Option {
	return func(s *DiskStore) {
		s.root = dir
	}
}

// WithManifest attaches the metadata manifest. Without one the store
// still works; it just cannot expire entries by age.
func WithManifest(m *Manifest) Option {
	return func(s *DiskStore) {
		s.manifest = m
	}
}

// WithMaxAge turns manifest entries older than d into cache misses.
// Zero or negative keeps artifacts forever.
func WithMaxAge(d time.Duration) Option {
	return func(s *DiskStore) {
		s.maxAge = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *DiskStore) {
		s.logger = logger
	}
}

func NewDiskStore(opts ...Option) (*DiskStore, error) {
	s := &DiskStore{
		formats: []format{parquetFormat{}, csvFormat{}},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		s.root = filepath.Join(wd, "data")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return s, nil
}

// Get returns the cached series for key. A missing, expired or
// unreadable artifact is a miss, never an error.
func (s *DiskStore) Get(ctx context.Context, key feed.Key) (feed.Series, bool, error) {
	if s.expired(ctx, key) {
		return feed.Series{}, false, nil
	}
	for _, f := range s.formats {
		path := s.artifactPath(key, f)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		bars, err := f.read(path)
		if err != nil {
			s.logger.Warn("unreadable cache artifact", "path", path, "error", err)
			continue
		}
		return feed.Series{Symbol: key.Symbol, Interval: key.Interval, Bars: bars}, true, nil
	}
	return feed.Series{}, false, nil
}

// Put writes series under key, trying each format in order. An empty
// series still produces an artifact so later reads can distinguish
// "nothing traded" from "never fetched".
func (s *DiskStore) Put(ctx context.Context, key feed.Key, series feed.Series) error {
	dir := filepath.Join(s.root, sanitize(key.Source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	var lastErr error
	for i, f := range s.formats {
		path := s.artifactPath(key, f)
		tmp := path + ".tmp"
		if err := f.write(tmp, series.Bars); err != nil {
			_ = os.Remove(tmp)
			lastErr = err
			if i < len(s.formats)-1 {
				s.logger.Warn("cache encode failed, trying fallback format",
					"format", f.ext(), "key", key.String(), "error", err)
			}
			continue
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			lastErr = err
			continue
		}
		s.removeSiblings(key, f)
		s.record(ctx, key, f, series)
		return nil
	}
	return fmt.Errorf("no cache format succeeded for %s: %w", key.String(), lastErr)
}

// PruneStale deletes artifacts whose manifest entry is older than the
// configured max age and reports how many were removed. A store without
// a manifest or a max age has nothing to prune.
func (s *DiskStore) PruneStale(ctx context.Context) (int, error) {
	if s.manifest == nil || s.maxAge <= 0 {
		return 0, nil
	}
	entries, err := s.manifest.StaleSince(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		return 0, fmt.Errorf("list stale entries: %w", err)
	}
	removed := 0
	for _, e := range entries {
		key := feed.Key{Symbol: e.Symbol, Source: e.Source, Interval: feed.Interval(e.Interval)}
		for _, f := range s.formats {
			_ = os.Remove(s.artifactPath(key, f))
		}
		if err := s.manifest.Delete(ctx, e.Key); err != nil {
			s.logger.Warn("delete manifest entry failed", "key", e.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// expired reports whether the manifest marks key as older than the max
// age. The manifest is advisory: when it is absent or unreadable the
// artifact is trusted.
func (s *DiskStore) expired(ctx context.Context, key feed.Key) bool {
	if s.manifest == nil || s.maxAge <= 0 {
		return false
	}
	fetchedAt, ok, err := s.manifest.FetchedAt(ctx, key.String())
	if err != nil {
		s.logger.Warn("manifest read failed", "key", key.String(), "error", err)
		return false
	}
	if !ok {
		return false
	}
	return s.now().Sub(fetchedAt) > s.maxAge
}

func (s *DiskStore) record(ctx context.Context, key feed.Key, f format, series feed.Series) {
	if s.manifest == nil {
		return
	}
	e := Entry{
		Key:       key.String(),
		Source:    key.Source,
		Symbol:    key.Symbol,
		Interval:  string(key.Interval),
		Format:    f.ext(),
		BarCount:  int64(len(series.Bars)),
		FetchedAt: s.now(),
	}
	if n := len(series.Bars); n > 0 {
		e.FirstTS = series.Bars[0].Time
		e.LastTS = series.Bars[n-1].Time
	}
	if err := s.manifest.Record(ctx, e); err != nil {
		s.logger.Warn("record manifest entry failed", "key", e.Key, "error", err)
	}
}

// removeSiblings drops artifacts for key in every format except written,
// so a key never resolves to two representations.
func (s *DiskStore) removeSiblings(key feed.Key, written format) {
	for _, f := range s.formats {
		if f.ext() == written.ext() {
			continue
		}
		_ = os.Remove(s.artifactPath(key, f))
	}
}

func (s *DiskStore) artifactPath(key feed.Key, f format) string {
	name := sanitize(key.Symbol) + "_" + string(key.Interval) + "." + f.ext()
	return filepath.Join(s.root, sanitize(key.Source), name)
}

// sanitize keeps artifact names inside the cache root regardless of what
// a symbol contains. Anything outside the safe set becomes an underscore.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
