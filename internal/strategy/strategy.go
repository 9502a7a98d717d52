// Package strategy turns normalized series into trade signals.
package strategy

import (
	"time"

	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

type Action string

const (
	ActionHold Action = "hold"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Signal is the decision for the most recent bar. Size is zero unless
// the action is a buy or a sell.
type Signal struct {
	Action Action
	Size   float64
}

// Strategy consumes bars one at a time. Implementations keep whatever
// state they need between bars; OnStart resets it.
type Strategy interface {
	OnStart()
	OnBar(bar feed.Bar)
	Signal() Signal
	OnStop()
}

// Event records a signal that fired while replaying a series.
type Event struct {
	Time   time.Time
	Action Action
	Size   float64
	Close  float64
}

// Evaluate replays series through strat and collects the bars that
// produced a buy or sell.
func Evaluate(strat Strategy, series feed.Series) []Event {
	strat.OnStart()
	defer strat.OnStop()

	var events []Event
	for _, bar := range series.Bars {
		strat.OnBar(bar)
		sig := strat.Signal()
		if sig.Action != ActionBuy && sig.Action != ActionSell {
			continue
		}
		events = append(events, Event{
			Time:   bar.Time,
			Action: sig.Action,
			Size:   sig.Size,
			Close:  bar.Close,
		})
	}
	return events
}
