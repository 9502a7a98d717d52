// Package yfinance implements the Yahoo Finance provider adapter. It uses
// the v8 chart API with cookie + crumb authentication, the same approach
// the yfinance Python library takes.
package yfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
)

const (
	sourceName = "yfinance"

	defaultChartEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL     = "https://fc.yahoo.com"
	defaultCrumbURL      = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	dateFormat           = "2006-01-02"
	chunkDays            = 1250
	userAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Adapter fetches historical OHLCV data from Yahoo Finance.
type Adapter struct {
	workers       int
	client        *http.Client
	chartEndpoint string
	cookieURL     string
	crumbURL      string
	logger        *slog.Logger

	mu    sync.Mutex
	crumb string
}

// New creates an Adapter and probes its configuration: endpoint URLs must
// parse and an HTTP client must be present, so a misconfigured backend
// surfaces at startup instead of on the first fetch.
func New(opts ...Option) (*Adapter, error) {
	jar, _ := cookiejar.New(nil)
	a := &Adapter{
		workers:       5,
		client:        &http.Client{Jar: jar},
		chartEndpoint: defaultChartEndpoint,
		cookieURL:     defaultCookieURL,
		crumbURL:      defaultCrumbURL,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.client == nil {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "not configured: nil HTTP client"}
	}
	for _, ep := range []string{a.chartEndpoint, a.cookieURL, a.crumbURL} {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &adapter.AdapterError{Source: sourceName, Msg: fmt.Sprintf("not configured: invalid endpoint %q", ep)}
		}
	}
	if a.workers <= 0 {
		a.workers = 1
	}
	return a, nil
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithWorkers sets the worker concurrency for parallel chunk fetching.
func WithWorkers(n int) Option {
	return func(a *Adapter) { a.workers = n }
}

// WithClient sets the HTTP client. The client should have a cookie jar.
func WithClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithChartEndpoint overrides the default chart API endpoint.
func WithChartEndpoint(ep string) Option {
	return func(a *Adapter) { a.chartEndpoint = ep }
}

// WithCookieURL overrides the URL used to obtain the session cookie.
func WithCookieURL(u string) Option {
	return func(a *Adapter) { a.cookieURL = u }
}

// WithCrumbURL overrides the URL used to obtain the crumb token.
func WithCrumbURL(u string) Option {
	return func(a *Adapter) { a.crumbURL = u }
}

// WithLogger sets the logger for fetch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Source returns the adapter identifier.
func (a *Adapter) Source() string { return sourceName }

// chartResponse represents the Yahoo Finance v8 chart API response.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []any `json:"open"`
			High   []any `json:"high"`
			Low    []any `json:"low"`
			Close  []any `json:"close"`
			Volume []any `json:"volume"`
		} `json:"quote"`
		Adjclose []struct {
			Adjclose []any `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Fetch retrieves bars for the requested symbol and date range. Chunks
// are fetched in parallel; any chunk failure fails the whole fetch with
// a classified error.
func (a *Adapter) Fetch(ctx context.Context, req adapter.Request) ([]adapter.Bar, error) {
	if req.Symbol == "" {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "symbol cannot be empty"}
	}
	interval, err := apiInterval(req.Interval)
	if err != nil {
		return nil, err
	}

	start := req.Start
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	if start.After(end) {
		return nil, &adapter.AdapterError{Source: sourceName, Msg: "start date cannot be after end date"}
	}

	// Ensure we have a valid crumb before starting parallel fetches.
	if err := a.ensureCrumb(ctx); err != nil {
		return nil, adapter.Classify(sourceName, fmt.Errorf("yahoo auth: %w", err))
	}

	chunks := adapter.SplitDateRange(start, end, chunkDays)
	results := make([][]adapter.Bar, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, c := range chunks {
		g.Go(func() error {
			bars, err := a.fetchChart(ctx, req.Symbol, interval, req.Adjusted, c.From, c.To)
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

// apiInterval maps a requested interval onto the chart API's interval
// parameter. Anything outside the supported set is an adapter failure.
func apiInterval(interval string) (string, error) {
	switch strings.ToLower(interval) {
	case "", "1d", "daily":
		return "1d", nil
	case "1wk", "weekly":
		return "1wk", nil
	case "1mo", "monthly":
		return "1mo", nil
	}
	return "", &adapter.AdapterError{Source: sourceName, Msg: fmt.Sprintf("interval not supported: %s", interval)}
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (a *Adapter) ensureCrumb(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.crumb != "" {
		return nil
	}

	// Step 1: GET the cookie host to obtain a session cookie.
	cookieReq, err := http.NewRequestWithContext(ctx, "GET", a.cookieURL, nil)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	cookieReq.Header.Set("User-Agent", userAgent)

	cookieRes, err := a.client.Do(cookieReq) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch cookie: %w", err)
	}
	_ = cookieRes.Body.Close()

	// Step 2: GET crumb endpoint (cookie is sent automatically via jar).
	crumbReq, err := http.NewRequestWithContext(ctx, "GET", a.crumbURL, nil)
	if err != nil {
		return fmt.Errorf("build crumb request: %w", err)
	}
	crumbReq.Header.Set("User-Agent", userAgent)

	crumbRes, err := a.client.Do(crumbReq) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode == http.StatusTooManyRequests {
		return &adapter.RateLimitError{Source: sourceName, Msg: "crumb endpoint returned HTTP 429"}
	}
	if crumbRes.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", crumbRes.StatusCode)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return fmt.Errorf("empty crumb received")
	}

	a.crumb = crumb
	a.logger.Info("yfinance: obtained crumb", "crumb_len", len(crumb))
	return nil
}

// fetchChart fetches chart data for a single date range chunk.
func (a *Adapter) fetchChart(ctx context.Context, symbol, interval string, adjusted bool, from, to time.Time) ([]adapter.Bar, error) {
	a.mu.Lock()
	crumb := a.crumb
	a.mu.Unlock()

	reqURL := fmt.Sprintf("%s/%s?period1=%s&period2=%s&interval=%s&events=div%%2Csplits&crumb=%s",
		a.chartEndpoint,
		symbol,
		strconv.FormatInt(from.Unix(), 10),
		strconv.FormatInt(to.Unix(), 10),
		interval,
		crumb,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := a.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, &adapter.RateLimitError{Source: sourceName, Msg: fmt.Sprintf("chart endpoint returned HTTP 429 for %s", symbol)}
	}
	if res.StatusCode != http.StatusOK {
		// Invalidate crumb on auth errors so the next Fetch retries auth.
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			a.mu.Lock()
			a.crumb = ""
			a.mu.Unlock()
		}
		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, symbol)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo response: %w", err)
	}

	if resp.Chart.Error != nil {
		// "Not Found" means no data for the symbol, which is not a failure.
		if resp.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart error: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	bars := parseResult(resp.Chart.Result[0], adjusted)

	a.logger.Info("retrieved yahoo data", "symbol", symbol,
		"from", from.Format(dateFormat), "to", to.Format(dateFormat),
		"count", len(bars))

	return bars, nil
}

// parseResult converts one chart result into bars. Rows with a null close
// are skipped (Yahoo uses null for non-trading points). When adjusted is
// set, open/high/low/close are scaled by adjclose/close per row, the same
// rule yfinance applies for auto-adjusted downloads.
func parseResult(result chartResult, adjusted bool) []adapter.Bar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	var adjcloses []any
	if len(result.Indicators.Adjclose) > 0 {
		adjcloses = result.Indicators.Adjclose[0].Adjclose
	}

	n := min(len(result.Timestamp), len(quote.Close))
	bars := make([]adapter.Bar, 0, n)
	for i := range n {
		closeVal, ok := toFloat64(quote.Close[i])
		if !ok {
			continue
		}

		adjVal := closeVal
		if i < len(adjcloses) {
			if v, ok := toFloat64(adjcloses[i]); ok {
				adjVal = v
			}
		}

		b := adapter.Bar{
			Date:     time.Unix(result.Timestamp[i], 0).UTC().Truncate(24 * time.Hour),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    closeVal,
			AdjClose: adjVal,
			Volume:   at(quote.Volume, i),
		}

		if adjusted && closeVal != 0 {
			ratio := adjVal / closeVal
			b.Open *= ratio
			b.High *= ratio
			b.Low *= ratio
			b.Close = adjVal
		}

		bars = append(bars, b)
	}
	return bars
}

// at reads arr[i] as float64, tolerating nulls and short arrays.
func at(arr []any, i int) float64 {
	if i >= len(arr) {
		return 0
	}
	v, _ := toFloat64(arr[i])
	return v
}

// toFloat64 converts a JSON number (which may be float64 or json.Number) to float64.
// Returns false for nil values (Yahoo uses null for missing data points).
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
