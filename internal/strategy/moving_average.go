package strategy

import (
	"fmt"

	"github.com/cinar/indicator"

	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

// MovingAverage is a crossover strategy over two simple moving
// averages: a buy when the short average crosses above the long one, a
// sell when it crosses back below. Crossings are detected against the
// previous bar's averages, so the first evaluated bar never signals.
type MovingAverage struct {
	shortWindow int
	longWindow  int
	size        float64

	closes    []float64
	position  int
	lastShort float64
	lastLong  float64
	primed    bool
	current   Signal
}

type MovingAverageOption func(*MovingAverage)

func WithWindows(short, long int) MovingAverageOption {
	return func(m *MovingAverage) {
		m.shortWindow = short
		m.longWindow = long
	}
}

func WithSize(size float64) MovingAverageOption {
	return func(m *MovingAverage) {
		m.size = size
	}
}

func NewMovingAverage(opts ...MovingAverageOption) (*MovingAverage, error) {
	m := &MovingAverage{shortWindow: 5, longWindow: 20, size: 1}
	for _, opt := range opts {
		opt(m)
	}
	if m.shortWindow < 1 {
		return nil, fmt.Errorf("short window must be positive")
	}
	if m.shortWindow >= m.longWindow {
		return nil, fmt.Errorf("short window must be smaller than long window")
	}
	m.OnStart()
	return m, nil
}

func (m *MovingAverage) OnStart() {
	m.closes = m.closes[:0]
	m.position = 0
	m.primed = false
	m.current = Signal{Action: ActionHold}
}

func (m *MovingAverage) OnBar(bar feed.Bar) {
	m.closes = append(m.closes, bar.Close)
	if len(m.closes) > m.longWindow {
		m.closes = m.closes[1:]
	}
	m.evaluate()
}

func (m *MovingAverage) Signal() Signal {
	return m.current
}

func (m *MovingAverage) OnStop() {}

// Position reports 1 after a buy and 0 after a sell or on start.
func (m *MovingAverage) Position() int {
	return m.position
}

func (m *MovingAverage) evaluate() {
	m.current = Signal{Action: ActionHold}
	if len(m.closes) < m.longWindow {
		return
	}

	shortSMA := last(indicator.Sma(m.shortWindow, m.closes))
	longSMA := last(indicator.Sma(m.longWindow, m.closes))

	if m.primed {
		switch {
		case m.lastShort <= m.lastLong && shortSMA > longSMA:
			m.current = Signal{Action: ActionBuy, Size: m.size}
			m.position = 1
		case m.lastShort >= m.lastLong && shortSMA < longSMA:
			m.current = Signal{Action: ActionSell, Size: m.size}
			m.position = 0
		}
	}

	m.lastShort = shortSMA
	m.lastLong = longSMA
	m.primed = true
}

func last(values []float64) float64 {
	return values[len(values)-1]
}
