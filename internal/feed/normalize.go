package feed

import (
	"math"
	"sort"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
)

// Normalize coerces raw provider bars into the canonical Series form:
// ascending unique timestamps, every column present and finite. Duplicate
// timestamps keep the last occurrence, which is the most authoritative
// one for corrected or re-adjusted re-reports.
func Normalize(symbol string, interval Interval, bars []adapter.Bar) Series {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Date.IsZero() {
			continue
		}
		out = append(out, Bar{
			Time:     b.Date,
			Open:     scrub(b.Open),
			High:     scrub(b.High),
			Low:      scrub(b.Low),
			Close:    scrub(b.Close),
			AdjClose: scrub(b.AdjClose),
			Volume:   scrub(b.Volume),
		})
	}

	// Stable sort keeps input order among equal timestamps, so the last
	// reported duplicate survives the dedupe below.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	deduped := out[:0]
	for _, b := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(b.Time) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	return Series{Symbol: symbol, Interval: interval, Bars: deduped}
}

// scrub zero-fills non-finite values so cached artifacts and downstream
// consumers never see NaN or Inf.
func scrub(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
