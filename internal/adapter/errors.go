package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// RateLimitError reports provider-imposed throttling. Callers may back off
// and retry; the dispatcher never retries on its own.
type RateLimitError struct {
	Source string
	Msg    string
	Err    error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: rate limited: %s: %v", e.Source, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: rate limited: %s", e.Source, e.Msg)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AdapterError reports any non-transient provider failure: misconfigured
// backend, unsupported interval, malformed response, I/O error.
type AdapterError struct {
	Source string
	Msg    string
	Err    error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// rateLimitHints is matched case-insensitively against failure text.
// Providers rarely agree on status codes, so the wording is the most
// reliable throttling signal across them.
var rateLimitHints = []string{"rate", "limit", "too many requests"}

// Classify wraps err as a RateLimitError when its text carries a
// throttling hint and as an AdapterError otherwise. Errors already
// classified pass through unchanged so adapters can call it on every
// return path.
func Classify(source string, err error) error {
	if err == nil {
		return nil
	}
	var rl *RateLimitError
	var ae *AdapterError
	if errors.As(err, &rl) || errors.As(err, &ae) {
		return err
	}
	if hasRateLimitHint(err.Error()) {
		return &RateLimitError{Source: source, Msg: "provider throttled the request", Err: err}
	}
	return &AdapterError{Source: source, Msg: "fetch failed", Err: err}
}

func hasRateLimitHint(msg string) bool {
	msg = strings.ToLower(msg)
	for _, hint := range rateLimitHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsAdapterFailure reports whether err is (or wraps) an AdapterError.
func IsAdapterFailure(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}
