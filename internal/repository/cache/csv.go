package cache

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

// WriteCSV writes bars to w with the canonical header. The same encoding
// backs the CSV cache artifacts and the command line dump.
func WriteCSV(w io.Writer, bars []feed.Bar) error {
	cw := csv.NewWriter(w)
	header := []string{
		string(feed.ColumnTime), string(feed.ColumnOpen), string(feed.ColumnHigh),
		string(feed.ColumnLow), string(feed.ColumnClose),
		string(feed.ColumnAdjClose), string(feed.ColumnVolume),
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.AdjClose),
			formatFloat(b.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type csvFormat struct{}

func (csvFormat) ext() string { return "csv" }

func (csvFormat) write(path string, bars []feed.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, bars); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (csvFormat) read(path string) ([]feed.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	bars := make([]feed.Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 7 {
			return nil, fmt.Errorf("short row: %d columns", len(rec))
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, err
		}
		vals := make([]float64, 6)
		for i := range vals {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse %q: %w", rec[i+1], err)
			}
			vals[i] = v
		}
		bars = append(bars, feed.Bar{
			Time:     ts,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			AdjClose: vals[4],
			Volume:   vals[5],
		})
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return ts.UTC(), nil
}

// formatFloat emits the shortest decimal that parses back to the same
// value, so prices survive a CSV round trip bit for bit.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
