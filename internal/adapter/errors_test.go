package adapter

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify_RateLimitKeywords(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRateLimit bool
	}{
		{"rate keyword", errors.New("API rate exceeded"), true},
		{"limit keyword", errors.New("request limit reached"), true},
		{"too many requests", errors.New("HTTP 429: Too Many Requests"), true},
		{"mixed case", errors.New("RATE LIMITED, slow down"), true},
		{"plain failure", errors.New("connection refused"), false},
		{"timeout", errors.New("context deadline exceeded"), false},
		{"parse failure", errors.New("unexpected end of JSON input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("akshare", tt.err)
			if IsRateLimit(got) != tt.wantRateLimit {
				t.Errorf("IsRateLimit = %v, want %v for %q", IsRateLimit(got), tt.wantRateLimit, tt.err)
			}
			if IsAdapterFailure(got) == tt.wantRateLimit {
				t.Errorf("IsAdapterFailure = %v, want %v for %q", IsAdapterFailure(got), !tt.wantRateLimit, tt.err)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify("csv", nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestClassify_AlreadyClassified(t *testing.T) {
	rl := &RateLimitError{Source: "yfinance", Msg: "throttled"}
	if got := Classify("yfinance", rl); got != error(rl) {
		t.Errorf("expected pass-through, got %v", got)
	}

	// Wrapped classified errors pass through too.
	wrapped := fmt.Errorf("chunk 3: %w", &AdapterError{Source: "akshare", Msg: "bad payload"})
	got := Classify("akshare", wrapped)
	if got != wrapped {
		t.Errorf("expected pass-through for wrapped error, got %v", got)
	}
	if !IsAdapterFailure(got) {
		t.Error("expected wrapped error to remain an adapter failure")
	}
}

func TestClassify_PreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	got := Classify("yfinance", cause)

	var ae *AdapterError
	if !errors.As(got, &ae) {
		t.Fatalf("expected *AdapterError, got %T", got)
	}
	if ae.Source != "yfinance" {
		t.Errorf("source = %q, want yfinance", ae.Source)
	}
	if !errors.Is(got, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
}

func TestErrorMessages(t *testing.T) {
	rl := &RateLimitError{Source: "akshare", Msg: "provider throttled the request"}
	if rl.Error() != "akshare: rate limited: provider throttled the request" {
		t.Errorf("unexpected message: %s", rl.Error())
	}

	ae := &AdapterError{Source: "csv", Msg: "interval not supported"}
	if ae.Error() != "csv: interval not supported" {
		t.Errorf("unexpected message: %s", ae.Error())
	}
}
