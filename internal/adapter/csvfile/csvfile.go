// Package csvfile implements the local-file provider adapter. Symbols
// resolve to CSV files under a base directory; a symbol that already
// names a .csv path is read directly.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

const sourceName = "csv"

// dateLayouts are tried in order when parsing the time column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"20060102",
}

type Adapter struct {
	baseDir string
	logger  *slog.Logger
}

func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		a.baseDir = filepath.Join(wd, "data", "csv")
	}
	return a, nil
}

type Option func(*Adapter)

// WithBaseDir sets the directory symbols are resolved under.
func WithBaseDir(dir string) Option {
	return func(a *Adapter) { a.baseDir = dir }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func (a *Adapter) Source() string { return sourceName }

// Fetch reads bars from the resolved CSV file. A missing file is not an
// error: local data simply does not exist yet, so the result is empty.
// An unreadable or unrecognizable file degrades to an empty result with
// a logged warning rather than failing the caller.
func (a *Adapter) Fetch(ctx context.Context, req adapter.Request) ([]adapter.Bar, error) {
	if req.Symbol == "" {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "symbol cannot be empty"}
	}
	if err := ctx.Err(); err != nil {
		return nil, adapter.Classify(sourceName, err)
	}

	path := a.resolvePath(req.Symbol)

	f, err := os.Open(path) //nolint:gosec // path derived from configured base dir
	if err != nil {
		if os.IsNotExist(err) {
			a.logger.Debug("csv file not found", "symbol", req.Symbol, "path", path)
			return nil, nil
		}
		a.logger.Warn("csv file unreadable", "symbol", req.Symbol, "path", path, "error", err)
		return nil, nil
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		a.logger.Warn("csv parse failed", "symbol", req.Symbol, "path", path, "error", err)
		return nil, nil
	}
	if len(records) < 2 {
		return nil, nil
	}

	cols := headerIndex(records[0])
	timeIdx, ok := cols[feed.ColumnTime]
	if !ok {
		a.logger.Warn("csv file has no recognizable date column", "symbol", req.Symbol, "path", path)
		return nil, nil
	}

	bars := make([]adapter.Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if timeIdx >= len(rec) {
			continue
		}
		date, ok := parseDate(rec[timeIdx])
		if !ok {
			continue
		}
		if !req.Start.IsZero() && date.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && date.After(req.End) {
			continue
		}

		bars = append(bars, adapter.Bar{
			Date:     date,
			Open:     cell(rec, cols, feed.ColumnOpen),
			High:     cell(rec, cols, feed.ColumnHigh),
			Low:      cell(rec, cols, feed.ColumnLow),
			Close:    cell(rec, cols, feed.ColumnClose),
			AdjClose: cell(rec, cols, feed.ColumnAdjClose),
			Volume:   cell(rec, cols, feed.ColumnVolume),
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	a.logger.Debug("read csv data", "symbol", req.Symbol, "path", path, "count", len(bars))
	return bars, nil
}

// resolvePath treats a symbol already naming a .csv file as a direct
// path; anything else resolves under the base directory.
func (a *Adapter) resolvePath(symbol string) string {
	if strings.HasSuffix(strings.ToLower(symbol), ".csv") {
		return symbol
	}
	return filepath.Join(a.baseDir, symbol+".csv")
}

// headerIndex maps canonical columns onto their position in the header
// row. The first header matching a canonical column wins.
func headerIndex(header []string) map[feed.Column]int {
	cols := make(map[feed.Column]int, len(header))
	for i, name := range header {
		c, ok := feed.CanonicalColumn(name)
		if !ok {
			continue
		}
		if _, seen := cols[c]; !seen {
			cols[c] = i
		}
	}
	return cols
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// cell reads a numeric column from the record, zero-filling absent
// columns and unparseable values.
func cell(rec []string, cols map[feed.Column]int, c feed.Column) float64 {
	i, ok := cols[c]
	if !ok || i >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0
	}
	return v
}
