package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"soundrelay/internal/retry"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{
		Attempts: 3,
		MinWait:  time.Millisecond,
		MaxWait:  2 * time.Millisecond,
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("still failing")
	err := retry.Do(context.Background(), retry.Policy{
		Attempts: 3,
		MinWait:  time.Millisecond,
		MaxWait:  time.Millisecond,
	}, func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{
		Attempts:  5,
		MinWait:   time.Millisecond,
		MaxWait:   time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := retry.Do(ctx, retry.Policy{
		Attempts: 10,
		MinWait:  time.Hour,
		MaxWait:  time.Hour,
	}, func(context.Context) error {
		calls++
		return errors.New("flaky")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call before cancel, got %d", calls)
	}
}
