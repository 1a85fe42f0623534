package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), testConfig(), testLogger(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), testConfig(), testLogger(), "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("always fails")
	calls := 0
	_, err := Do(context.Background(), testConfig(), testLogger(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, testConfig(), testLogger(), "op", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no attempt after cancel, got %d", calls)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := &Config{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 10.0,
	}
	if got := backoffFor(0, cfg); got != 100*time.Millisecond {
		t.Errorf("attempt 0: got %v", got)
	}
	if got := backoffFor(1, cfg); got != time.Second {
		t.Errorf("attempt 1: expected cap, got %v", got)
	}
	if got := backoffFor(5, cfg); got != time.Second {
		t.Errorf("attempt 5: expected cap, got %v", got)
	}
}
