package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
	"github.com/Dendrobium123/FeedbackTrader/internal/adapter/akshare"
	"github.com/Dendrobium123/FeedbackTrader/internal/adapter/csvfile"
	"github.com/Dendrobium123/FeedbackTrader/internal/adapter/yfinance"
	"github.com/Dendrobium123/FeedbackTrader/internal/config"
	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
	"github.com/Dendrobium123/FeedbackTrader/internal/logging"
	"github.com/Dendrobium123/FeedbackTrader/internal/platform/sqlite"
	"github.com/Dendrobium123/FeedbackTrader/internal/repository/cache"
	"github.com/Dendrobium123/FeedbackTrader/internal/scheduler"
	"github.com/Dendrobium123/FeedbackTrader/internal/strategy"
	"github.com/Dendrobium123/FeedbackTrader/internal/warmer"
)

var dateLayouts = []string{"2006-01-02", "20060102"}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "fetch":
		err = runFetch(os.Args[2:])
	case "signals":
		err = runSignals(os.Args[2:])
	case "warm":
		err = runWarm(os.Args[2:])
	case "sources":
		err = runSources(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: feedbacktrader <command> [flags]

commands:
  fetch     fetch one series and print or save it
  signals   replay a series through the crossover strategy
  warm      refresh the configured watchlist, once or on a schedule
  sources   list registered data sources

run "feedbacktrader <command> -h" for the command's flags
`)
}

// app bundles the wired pipeline every command needs.
type app struct {
	cfg     *config.Config
	service *feed.Service
	store   *cache.DiskStore
	db      *sqlite.DB
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	if _, err := logging.Setup(logging.Options{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
	}); err != nil {
		return nil, err
	}

	storeOpts := []cache.Option{
		cache.WithRoot(cfg.DataDir),
		cache.WithMaxAge(time.Duration(cfg.Cache.MaxAge)),
	}

	// The manifest is advisory: a failed open degrades staleness
	// tracking, not fetching.
	var db *sqlite.DB
	if cfg.DBPath != "" {
		if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		db, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			slog.Warn("manifest database unavailable, caching without staleness",
				"path", cfg.DBPath, "error", err)
			db = nil
		} else {
			storeOpts = append(storeOpts, cache.WithManifest(cache.NewManifest(db.DB)))
		}
	}

	store, err := cache.NewDiskStore(storeOpts...)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	registry := adapter.NewRegistry()
	yfOpts := []yfinance.Option{yfinance.WithWorkers(cfg.Workers)}
	if cfg.Sources.YahooEndpoint != "" {
		yfOpts = append(yfOpts, yfinance.WithChartEndpoint(cfg.Sources.YahooEndpoint))
	}
	yf, err := yfinance.New(yfOpts...)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("init yfinance adapter: %w", err)
	}
	registry.Register(yf)

	akOpts := []akshare.Option{akshare.WithWorkers(cfg.Workers)}
	if cfg.Sources.AkshareEndpoint != "" {
		akOpts = append(akOpts, akshare.WithEndpoint(cfg.Sources.AkshareEndpoint))
	}
	ak, err := akshare.New(akOpts...)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("init akshare adapter: %w", err)
	}
	registry.Register(ak)

	cf, err := csvfile.New(csvfile.WithBaseDir(cfg.CSVDir))
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("init csv adapter: %w", err)
	}
	registry.Register(cf)

	return &app{
		cfg:     cfg,
		service: feed.NewService(registry, store),
		store:   store,
		db:      db,
	}, nil
}

func (a *app) close() {
	closeDB(a.db)
}

func closeDB(db *sqlite.DB) {
	if db != nil {
		_ = db.Close()
	}
}

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	var (
		configPath = fs.String("config", "config.yaml", "config file path")
		symbol     = fs.String("symbol", "", "instrument symbol (required)")
		source     = fs.String("source", "", "data source: akshare, yfinance or csv (required)")
		start      = fs.String("start", "", "start date, 2006-01-02 or 20060102")
		end        = fs.String("end", "", "end date, 2006-01-02 or 20060102")
		interval   = fs.String("interval", "1d", "bar interval: 1d, 1wk or 1mo")
		adjusted   = fs.Bool("adjusted", false, "request adjusted prices")
		refresh    = fs.Bool("refresh", false, "refetch even when cached")
		noCache    = fs.Bool("no-cache", false, "skip cache read and write")
		out        = fs.String("out", "", "write the series as CSV to this file")
		dump       = fs.Bool("csv", false, "dump the series as CSV to stdout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	req := feed.Request{
		Symbol:   *symbol,
		Source:   *source,
		Interval: feed.Interval(*interval),
		Adjusted: *adjusted,
		Cache:    !*noCache,
		Refresh:  *refresh,
	}
	if req.Start, err = parseDate(*start); err != nil {
		return err
	}
	if req.End, err = parseDate(*end); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	series, err := a.service.GetHistory(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("%s/%s@%s: %d bars\n", req.Source, req.Symbol, series.Interval, len(series.Bars))
	if n := len(series.Bars); n > 0 {
		fmt.Printf("range: %s .. %s\n",
			series.Bars[0].Time.Format("2006-01-02"),
			series.Bars[n-1].Time.Format("2006-01-02"))
	}

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		if err := cache.WriteCSV(f, series.Bars); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Println("saved:", *out)
	}
	if *dump {
		if err := cache.WriteCSV(os.Stdout, series.Bars); err != nil {
			return err
		}
	}
	return nil
}

func runSignals(args []string) error {
	fs := flag.NewFlagSet("signals", flag.ExitOnError)
	var (
		configPath = fs.String("config", "config.yaml", "config file path")
		symbol     = fs.String("symbol", "", "instrument symbol (required)")
		source     = fs.String("source", "", "data source: akshare, yfinance or csv (required)")
		start      = fs.String("start", "", "start date, 2006-01-02 or 20060102")
		end        = fs.String("end", "", "end date, 2006-01-02 or 20060102")
		interval   = fs.String("interval", "1d", "bar interval: 1d, 1wk or 1mo")
		adjusted   = fs.Bool("adjusted", false, "request adjusted prices")
		refresh    = fs.Bool("refresh", false, "refetch even when cached")
		short      = fs.Int("short", 0, "short window (defaults to config)")
		long       = fs.Int("long", 0, "long window (defaults to config)")
		size       = fs.Float64("size", 0, "order size (defaults to config)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	req := feed.Request{
		Symbol:   *symbol,
		Source:   *source,
		Interval: feed.Interval(*interval),
		Adjusted: *adjusted,
		Cache:    true,
		Refresh:  *refresh,
	}
	if req.Start, err = parseDate(*start); err != nil {
		return err
	}
	if req.End, err = parseDate(*end); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	series, err := a.service.GetHistory(ctx, req)
	if err != nil {
		return err
	}

	if *short == 0 {
		*short = a.cfg.Strategy.ShortWindow
	}
	if *long == 0 {
		*long = a.cfg.Strategy.LongWindow
	}
	if *size == 0 {
		*size = a.cfg.Strategy.Size
	}

	ma, err := strategy.NewMovingAverage(
		strategy.WithWindows(*short, *long),
		strategy.WithSize(*size),
	)
	if err != nil {
		return err
	}

	events := strategy.Evaluate(ma, series)
	if len(events) == 0 {
		fmt.Printf("no signals over %d bars\n", len(series.Bars))
		return nil
	}
	for _, ev := range events {
		fmt.Printf("%s  %-4s size=%g close=%g\n",
			ev.Time.Format("2006-01-02"), ev.Action, ev.Size, ev.Close)
	}
	fmt.Printf("%d signals over %d bars, final position: %d\n",
		len(events), len(series.Bars), ma.Position())
	return nil
}

func runWarm(args []string) error {
	fs := flag.NewFlagSet("warm", flag.ExitOnError)
	var (
		configPath = fs.String("config", "config.yaml", "config file path")
		once       = fs.Bool("once", false, "run a single warm pass and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.Warm.Watchlist) == 0 {
		return fmt.Errorf("warm.watchlist is empty")
	}

	w := warmer.New(a.service, a.cfg.Warm.Watchlist, warmer.WithPruner(a.store))

	if *once {
		ctx, cancel := signalContext()
		defer cancel()
		w.Run(ctx)
		return nil
	}

	// Root context: cancelled on SIGINT/SIGTERM so an in-flight warm
	// pass winds down promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	sched := scheduler.New(rootCtx, slog.Default())
	if err := sched.Register("warm", a.cfg.Warm.Cron, w.Run); err != nil {
		return err
	}
	sched.Start()
	slog.Info("warm schedule active",
		"cron", a.cfg.Warm.Cron, "entries", len(a.cfg.Warm.Watchlist))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	rootCancel()
	sched.Stop()
	return nil
}

func runSources(args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	for _, source := range a.service.Sources() {
		fmt.Println(source)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, want 2006-01-02 or 20060102", s)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
