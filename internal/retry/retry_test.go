package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var errTransient = errors.New("upstream had a bad moment")
var errFatal = errors.New("malformed input")

func fastPolicy(maxAttempts int, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   retryable,
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	op := func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}

	attempts, err := Do(context.Background(), fastPolicy(3, func(error) bool { return true }), op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(3, attempts); diff != "" {
		t.Errorf("attempts mismatch (-want +got):\n%s", diff)
	}
}

func TestDoNeverRetriesFatal(t *testing.T) {
	calls := 0
	op := func(context.Context) error {
		calls++
		return errFatal
	}

	attempts, err := Do(context.Background(), fastPolicy(5, func(err error) bool {
		return !errors.Is(err, errFatal)
	}), op)
	if !errors.Is(err, errFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("fatal failure retried: %d attempts", attempts)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	op := func(context.Context) error { return errTransient }

	attempts, err := Do(context.Background(), fastPolicy(3, func(error) bool { return true }), op)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := func(context.Context) error {
		cancel()
		return errTransient
	}

	attempts, err := Do(ctx, fastPolicy(10, func(error) bool { return true }), op)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if attempts > 2 {
		t.Errorf("kept retrying after cancellation: %d attempts", attempts)
	}
}

func TestDoPerAttemptTimeout(t *testing.T) {
	p := fastPolicy(2, func(error) bool { return true })
	p.PerAttemptTimeout = 5 * time.Millisecond

	op := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	attempts, err := Do(context.Background(), p, op)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
