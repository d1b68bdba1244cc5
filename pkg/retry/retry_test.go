package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	r := New(fastConfig(3))

	calls := 0
	res := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r := New(fastConfig(5))

	failed := errors.New("transient")
	calls := 0
	res := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return failed
		}
		return nil
	})

	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if !errors.Is(res.LastError, failed) {
		t.Errorf("LastError = %v, want %v", res.LastError, failed)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	r := New(fastConfig(2))

	failed := errors.New("still down")
	calls := 0
	res := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return failed
	})

	if !errors.Is(res.Err, ErrMaxRetriesExceeded) {
		t.Fatalf("Err = %v, want ErrMaxRetriesExceeded", res.Err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial plus two retries)", calls)
	}
	if !errors.Is(res.LastError, failed) {
		t.Errorf("LastError = %v, want %v", res.LastError, failed)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	r := New(fastConfig(5))

	bad := errors.New("rejected")
	calls := 0
	res := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(bad)
	})

	if !errors.Is(res.Err, bad) {
		t.Fatalf("Err = %v, want %v", res.Err, bad)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(res.LastError, bad) {
		t.Errorf("LastError = %v, want unwrapped %v", res.LastError, bad)
	}
}

func TestDoHonorsCanceledContext(t *testing.T) {
	r := New(fastConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := r.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})

	if !errors.Is(res.Err, ErrContextCanceled) {
		t.Fatalf("Err = %v, want ErrContextCanceled", res.Err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDoStopsWhenContextEndsMidBackoff(t *testing.T) {
	r := New(&Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     time.Second,
		Multiplier:      1.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	failed := errors.New("transient")
	res := r.Do(ctx, func(ctx context.Context) error {
		return failed
	})

	if !errors.Is(res.Err, ErrContextCanceled) {
		t.Fatalf("Err = %v, want ErrContextCanceled", res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestErrorWrappersUnwrap(t *testing.T) {
	base := errors.New("base")

	if !errors.Is(Retryable(base), base) {
		t.Error("Retryable should unwrap to the original error")
	}
	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent should unwrap to the original error")
	}
	if Retryable(nil) != nil || Permanent(nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	r := New(nil)
	if r.cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", r.cfg.MaxRetries)
	}
	if r.cfg.InitialInterval != time.Second {
		t.Errorf("InitialInterval = %v, want 1s", r.cfg.InitialInterval)
	}

	r = New(&Config{MaxRetries: 1, JitterFactor: 3})
	if r.cfg.JitterFactor != 1 {
		t.Errorf("JitterFactor = %v, want clamped to 1", r.cfg.JitterFactor)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	r := New(&Config{
		MaxRetries:      10,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		Multiplier:      2.0,
	})

	if got := r.backoff(0); got != 10*time.Millisecond {
		t.Errorf("backoff(0) = %v, want 10ms", got)
	}
	if got := r.backoff(1); got != 20*time.Millisecond {
		t.Errorf("backoff(1) = %v, want 20ms", got)
	}
	if got := r.backoff(6); got != 50*time.Millisecond {
		t.Errorf("backoff(6) = %v, want capped at 50ms", got)
	}
}
