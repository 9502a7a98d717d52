// Package logging points the process-wide slog default at a timestamped
// run file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Options control where and how much the process logs.
type Options struct {
	// Dir is where run files are created. Defaults to ./logs.
	Dir string
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Console mirrors output to stderr in addition to the run file.
	Console bool
}

var (
	setupOnce sync.Once
	runPath   string
	setupErr  error
)

// Setup configures slog's default logger to write to
// <dir>/run_<timestamp>.log and returns the file path. Setup is
// idempotent; later calls keep the first configuration.
func Setup(opts Options) (string, error) {
	setupOnce.Do(func() {
		runPath, setupErr = configure(opts)
	})
	return runPath, setupErr
}

func configure(opts Options) (string, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = filepath.Join(wd, "logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, "run_"+time.Now().Format("20060102_150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}

	var w io.Writer = f
	if opts.Console {
		w = io.MultiWriter(f, os.Stderr)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	slog.SetDefault(slog.New(handler))
	return path, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
