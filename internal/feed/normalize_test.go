package feed

import (
	"math"
	"testing"
	"time"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_SortsAscending(t *testing.T) {
	bars := []adapter.Bar{
		{Date: day(3), Close: 3},
		{Date: day(1), Close: 1},
		{Date: day(2), Close: 2},
	}

	s := Normalize("TEST", IntervalDaily, bars)

	if len(s.Bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(s.Bars))
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i-1].Time.Before(s.Bars[i].Time) {
			t.Errorf("bars not strictly ascending at %d: %v >= %v", i, s.Bars[i-1].Time, s.Bars[i].Time)
		}
	}
}

func TestNormalize_DuplicateTimestampsKeepLast(t *testing.T) {
	bars := []adapter.Bar{
		{Date: day(1), Close: 1.0},
		{Date: day(2), Close: 2.0},
		{Date: day(2), Close: 2.5}, // corrected re-report
		{Date: day(3), Close: 3.0},
	}

	s := Normalize("TEST", IntervalDaily, bars)

	if len(s.Bars) != 3 {
		t.Fatalf("expected 3 bars after dedupe, got %d", len(s.Bars))
	}
	if s.Bars[1].Close != 2.5 {
		t.Errorf("expected last duplicate to win (2.5), got %f", s.Bars[1].Close)
	}
}

func TestNormalize_DuplicatesAcrossSortKeepLastInput(t *testing.T) {
	// The duplicate arrives out of order; stable sort must still leave the
	// later input as the survivor.
	bars := []adapter.Bar{
		{Date: day(2), Close: 2.0},
		{Date: day(1), Close: 1.0},
		{Date: day(2), Close: 2.5},
	}

	s := Normalize("TEST", IntervalDaily, bars)

	if len(s.Bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(s.Bars))
	}
	if s.Bars[1].Close != 2.5 {
		t.Errorf("expected 2.5 to survive, got %f", s.Bars[1].Close)
	}
}

func TestNormalize_ScrubsNonFinite(t *testing.T) {
	bars := []adapter.Bar{
		{Date: day(1), Open: math.NaN(), High: math.Inf(1), Low: math.Inf(-1), Close: 10, Volume: math.NaN()},
	}

	s := Normalize("TEST", IntervalDaily, bars)

	b := s.Bars[0]
	if b.Open != 0 || b.High != 0 || b.Low != 0 || b.Volume != 0 {
		t.Errorf("expected non-finite values zero-filled, got %+v", b)
	}
	if b.Close != 10 {
		t.Errorf("expected finite close preserved, got %f", b.Close)
	}
	if b.AdjClose != 0 {
		t.Errorf("expected absent adj close zero-filled, got %f", b.AdjClose)
	}
}

func TestNormalize_SkipsZeroDates(t *testing.T) {
	bars := []adapter.Bar{
		{Date: time.Time{}, Close: 1},
		{Date: day(1), Close: 2},
	}

	s := Normalize("TEST", IntervalDaily, bars)

	if len(s.Bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(s.Bars))
	}
	if s.Bars[0].Close != 2 {
		t.Errorf("expected the dated bar to survive, got %f", s.Bars[0].Close)
	}
}

func TestNormalize_Empty(t *testing.T) {
	s := Normalize("TEST", IntervalDaily, nil)
	if !s.Empty() {
		t.Error("expected empty series")
	}
	if s.Symbol != "TEST" || s.Interval != IntervalDaily {
		t.Errorf("expected key fields set on empty series, got %+v", s)
	}
}
