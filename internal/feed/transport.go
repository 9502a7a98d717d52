package feed

import (
	"fmt"
	"time"
)

// Request describes one GetHistory call. Zero Start or End leaves the
// range open on that side. Cache=false bypasses the store entirely;
// Refresh=true forces a provider fetch and overwrites the cached
// artifact when caching is enabled.
type Request struct {
	Symbol   string
	Source   string
	Start    time.Time
	End      time.Time
	Interval Interval
	Adjusted bool
	Cache    bool
	Refresh  bool
}

func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Source == "" {
		return fmt.Errorf("source is required")
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("end date must not be before start date")
	}
	if r.Interval != "" {
		if _, err := ParseInterval(string(r.Interval)); err != nil {
			return err
		}
	}
	return nil
}
