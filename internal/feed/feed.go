// Package feed holds the canonical market-data model: normalized OHLCV
// series, the cache key they are stored under, and the dispatcher that
// turns a history request into a cached, normalized Series.
package feed

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a bar granularity in canonical form.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// ParseInterval resolves an interval string, accepting the spelled-out
// aliases alongside the canonical forms.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1d", "daily", "d":
		return IntervalDaily, nil
	case "1wk", "weekly", "w":
		return IntervalWeekly, nil
	case "1mo", "monthly", "m":
		return IntervalMonthly, nil
	}
	return "", fmt.Errorf("unknown interval: %s", s)
}

// Bar is one normalized OHLCV observation. Columns a source does not
// provide are zero-filled so consumers can rely on every field being
// present.
type Bar struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjClose"`
	Volume   float64   `json:"volume"`
}

// Series is an ordered run of Bars for one symbol and interval. After
// normalization the timestamps are strictly increasing and unique. An
// empty Series is a valid result meaning "no data available".
type Series struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
	Bars     []Bar    `json:"bars"`
}

func (s Series) Empty() bool { return len(s.Bars) == 0 }

// Key identifies one cached artifact. Date bounds are deliberately not
// part of the key: an artifact holds whatever range was last fetched.
type Key struct {
	Symbol   string
	Source   string
	Interval Interval
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Source, k.Symbol, k.Interval)
}

// Column is a canonical column name of the normalized schema.
type Column string

const (
	ColumnTime     Column = "Date"
	ColumnOpen     Column = "Open"
	ColumnHigh     Column = "High"
	ColumnLow      Column = "Low"
	ColumnClose    Column = "Close"
	ColumnAdjClose Column = "Adj Close"
	ColumnVolume   Column = "Volume"
)

// columnSynonyms maps lowercase source spellings onto canonical columns.
// Adapters resolve raw headers through CanonicalColumn instead of keeping
// private variants of this table.
var columnSynonyms = map[string]Column{
	"date":      ColumnTime,
	"time":      ColumnTime,
	"datetime":  ColumnTime,
	"timestamp": ColumnTime,

	"open":       ColumnOpen,
	"open_price": ColumnOpen,

	"high": ColumnHigh,

	"low": ColumnLow,

	"close":       ColumnClose,
	"close_price": ColumnClose,

	"adj close": ColumnAdjClose,
	"adj_close": ColumnAdjClose,
	"adjclose":  ColumnAdjClose,

	"volume": ColumnVolume,
	"vol":    ColumnVolume,
}

// CanonicalColumn resolves a raw column name case-insensitively to its
// canonical form. The second return is false for unrecognized names.
func CanonicalColumn(name string) (Column, bool) {
	c, ok := columnSynonyms[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}
