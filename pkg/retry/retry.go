// Package retry implements bounded exponential backoff for delivery
// operations, plus dead letter publishing for work that exhausts its
// retry budget.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config bounds one retry loop. Zero values fall back to the defaults
// applied by New.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration
	// Multiplier grows the interval after each retry.
	Multiplier float64
	// JitterFactor randomizes each interval by up to this fraction in
	// either direction, spreading out competing retriers.
	JitterFactor float64
}

// DefaultConfig backs off 1s, 2s, 4s, 8s, 16s with a 30s cap.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is one attempt of the retried work.
type Operation func(ctx context.Context) error

// RetryableError marks an error as worth retrying. Retrying is already
// the default; the wrapper only carries the signal for callers that
// classify errors before handing them to a retrier.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as retryable. Returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// PermanentError stops the retry loop immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retrier gives up without further
// attempts. Returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result summarizes a finished retry loop.
type Result struct {
	// Err is the terminal error; nil means an attempt succeeded.
	Err error
	// LastError is the error of the final attempt made.
	LastError error
	// Attempts counts every attempt including the initial one.
	Attempts int
	// TotalDuration includes the backoff waits.
	TotalDuration time.Duration
}

// Retrier runs operations under one backoff configuration. Safe for
// concurrent use.
type Retrier struct {
	cfg *Config
}

// New builds a Retrier, filling unset config fields with defaults.
func New(cfg *Config) *Retrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 1 * time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.JitterFactor > 1 {
		cfg.JitterFactor = 1
	}
	return &Retrier{cfg: cfg}
}

// Do runs op until it succeeds, returns a permanent error, exhausts
// the retry budget, or the context ends.
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	start := time.Now()
	res := &Result{}
	defer func() { res.TotalDuration = time.Since(start) }()

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1

		if ctx.Err() != nil {
			res.Err = ErrContextCanceled
			return res
		}

		err := op(ctx)
		if err == nil {
			return res
		}
		res.LastError = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			res.Err = perm.Err
			res.LastError = perm.Err
			return res
		}

		if attempt == r.cfg.MaxRetries {
			res.Err = ErrMaxRetriesExceeded
			return res
		}

		select {
		case <-ctx.Done():
			res.Err = ErrContextCanceled
			return res
		case <-time.After(r.backoff(attempt)):
		}
	}
}

// backoff returns the wait before the retry following attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	interval := float64(r.cfg.InitialInterval) * math.Pow(r.cfg.Multiplier, float64(attempt))

	if r.cfg.JitterFactor > 0 {
		jitter := interval * r.cfg.JitterFactor
		interval += (rand.Float64()*2 - 1) * jitter
	}

	if interval > float64(r.cfg.MaxInterval) {
		interval = float64(r.cfg.MaxInterval)
	}
	if interval < 0 {
		interval = float64(r.cfg.InitialInterval)
	}
	return time.Duration(interval)
}
