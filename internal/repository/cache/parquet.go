package cache

import (
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

// barRecord is the columnar row schema. Timestamps are stored as unix
// milliseconds so any bar granularity round-trips exactly.
type barRecord struct {
	Timestamp int64   `parquet:"timestamp"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	AdjClose  float64 `parquet:"adj_close"`
	Volume    float64 `parquet:"volume"`
}

type parquetFormat struct{}

func (parquetFormat) ext() string { return "parquet" }

func (parquetFormat) write(path string, bars []feed.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	rows := make([]barRecord, len(bars))
	for i, b := range bars {
		rows[i] = barRecord{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			AdjClose:  b.AdjClose,
			Volume:    b.Volume,
		}
	}

	w := parquet.NewGenericWriter[barRecord](f)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			_ = f.Close()
			return err
		}
	}
	// Closing the writer flushes the footer; an empty series still
	// yields a valid zero-row file.
	if err := w.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (parquetFormat) read(path string) ([]feed.Bar, error) {
	rows, err := parquet.ReadFile[barRecord](path)
	if err != nil {
		return nil, err
	}
	bars := make([]feed.Bar, len(rows))
	for i, r := range rows {
		bars[i] = feed.Bar{
			Time:     time.UnixMilli(r.Timestamp).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
		}
	}
	return bars, nil
}
