// Package akshare implements the A-share provider adapter on top of the
// EastMoney kline API, the upstream that the akshare package delegates
// to for Chinese equity history. Daily bars only.
package akshare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
)

const (
	sourceName = "akshare"

	defaultKlineEndpoint = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	utToken              = "7eea3edcaed734bea9cbfc24409ed989"
	dateFormat           = "2006-01-02"
	paramDateFormat      = "20060102"
	chunkDays            = 2500
)

// klineResponse is the EastMoney kline payload. Each kline row is one
// comma-joined string: date,open,close,high,low,volume,amount.
type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

type Adapter struct {
	workers  int
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// New creates an Adapter and probes its configuration so a broken
// endpoint is reported at startup rather than on first use.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		workers:  5,
		client:   http.DefaultClient,
		endpoint: defaultKlineEndpoint,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.client == nil {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "not configured: nil HTTP client"}
	}
	u, err := url.Parse(a.endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: fmt.Sprintf("not configured: invalid endpoint %q", a.endpoint)}
	}
	if a.workers <= 0 {
		a.workers = 1
	}
	return a, nil
}

type Option func(*Adapter)

func WithWorkers(n int) Option {
	return func(a *Adapter) { a.workers = n }
}

func WithClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

func WithEndpoint(ep string) Option {
	return func(a *Adapter) { a.endpoint = ep }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func (a *Adapter) Source() string { return sourceName }

// Fetch retrieves daily bars for one A-share symbol. Long ranges are
// split into chunks fetched in parallel; any chunk failure fails the
// whole fetch with a classified error.
func (a *Adapter) Fetch(ctx context.Context, req adapter.Request) ([]adapter.Bar, error) {
	if req.Symbol == "" {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "symbol cannot be empty"}
	}
	switch strings.ToLower(req.Interval) {
	case "", "1d", "daily":
	default:
		return nil, &adapter.AdapterError{Source: sourceName, Msg: fmt.Sprintf("interval not supported: %s", req.Interval)}
	}

	secid, err := secID(req.Symbol)
	if err != nil {
		return nil, err
	}

	// The Shanghai exchange opened in 1990; an open start bound means
	// everything since then.
	start := req.Start
	if start.IsZero() {
		start = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	if start.After(end) {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "start date cannot be after end date"}
	}

	chunks := adapter.SplitDateRange(start, end, chunkDays)
	results := make([][]adapter.Bar, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, c := range chunks {
		g.Go(func() error {
			bars, err := a.fetchKlines(ctx, secid, req.Adjusted, c.From, c.To)
			if err != nil {
				return adapter.Classify(sourceName, err)
			}
			results[i] = bars
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []adapter.Bar
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (a *Adapter) fetchKlines(ctx context.Context, secid string, adjusted bool, from, to time.Time) ([]adapter.Bar, error) {
	fqt := "0"
	if adjusted {
		fqt = "1" // forward-adjusted
	}

	params := url.Values{}
	params.Set("secid", secid)
	params.Set("ut", utToken)
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57")
	params.Set("klt", "101")
	params.Set("fqt", fqt)
	params.Set("beg", from.Format(paramDateFormat))
	params.Set("end", to.Format(paramDateFormat))

	req, err := http.NewRequestWithContext(ctx, "GET", a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := a.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, &adapter.RateLimitError{Source: sourceName, Msg: fmt.Sprintf("kline endpoint returned HTTP 429 for %s", secid)}
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney returned HTTP %d for %s", res.StatusCode, secid)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse eastmoney response: %w", err)
	}

	if resp.RC != 0 {
		return nil, fmt.Errorf("eastmoney rc=%d for %s", resp.RC, secid)
	}
	if resp.Data == nil {
		return nil, nil
	}

	bars := make([]adapter.Bar, 0, len(resp.Data.Klines))
	for _, row := range resp.Data.Klines {
		b, ok := parseKline(row)
		if !ok {
			continue
		}
		bars = append(bars, b)
	}

	a.logger.Info("retrieved eastmoney data", "secid", secid,
		"from", from.Format(dateFormat), "to", to.Format(dateFormat),
		"count", len(bars))

	return bars, nil
}

// parseKline splits one "date,open,close,high,low,volume,amount" row.
func parseKline(row string) (adapter.Bar, bool) {
	fields := strings.Split(row, ",")
	if len(fields) < 6 {
		return adapter.Bar{}, false
	}

	date, err := time.Parse(dateFormat, fields[0])
	if err != nil {
		return adapter.Bar{}, false
	}

	return adapter.Bar{
		Date:   date.UTC(),
		Open:   f64(fields[1]),
		Close:  f64(fields[2]),
		High:   f64(fields[3]),
		Low:    f64(fields[4]),
		Volume: f64(fields[5]),
	}, true
}

func f64(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// secID maps the accepted symbol spellings onto an EastMoney security id
// (market prefix "1" for Shanghai, "0" for Shenzhen). Accepted forms:
// 600000.SH, 600000.SS, 000001.SZ, sh600000, sz000001, and bare six-digit
// codes whose exchange is inferred from the leading digits.
func secID(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	var code, market string

	switch {
	case strings.HasSuffix(s, ".SH"), strings.HasSuffix(s, ".SS"):
		code, market = s[:len(s)-3], "1"
	case strings.HasSuffix(s, ".SZ"):
		code, market = s[:len(s)-3], "0"
	case strings.HasPrefix(s, "SH"):
		code, market = s[2:], "1"
	case strings.HasPrefix(s, "SZ"):
		code, market = s[2:], "0"
	default:
		code = s
	}

	if len(code) != 6 || !allDigits(code) {
		return "", &adapter.AdapterError{Source: sourceName, Msg: fmt.Sprintf("unsupported symbol: %s", symbol)}
	}

	if market == "" {
		switch code[:2] {
		case "00", "30":
			market = "0"
		case "50", "51", "60", "68", "90":
			market = "1"
		default:
			return "", &adapter.AdapterError{Source: sourceName, Msg: fmt.Sprintf("cannot infer exchange for symbol: %s", symbol)}
		}
	}

	return market + "." + code, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
