// Package retry provides exponential backoff retry logic for the engine's
// external calls (LLM providers, warehouse).
package retry

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- fraction of delay, prevents thundering herd
}

// DefaultConfig returns the provider-call policy: 3 attempts, 1s initial
// delay doubling each time (2^attempt seconds), capped at 30s, 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// RetryableError is implemented by errors that explicitly declare their
// retryability (LLM provider errors do).
type RetryableError interface {
	error
	IsRetryable() bool
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between attempts.
// Non-retryable errors abort immediately. When the failed attempt's error
// carries a provider-supplied retry-after hint, that hint overrides the
// computed backoff. Respects context cancellation during waits.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return result, err
		}

		if attempt < cfg.MaxAttempts-1 {
			wait := applyJitter(delay, cfg.JitterFactor)
			if hint, ok := RetryAfterHint(err); ok {
				wait = hint
			}
			select {
			case <-time.After(wait):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	return result, lastErr
}

// applyJitter adds random jitter to a delay: delay +/- delay*jitterFactor.
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// retryAfterPatterns match provider rate-limit messages that embed their own
// backoff duration, e.g. "Please try again in 7s" or "retry after 20 seconds".
var retryAfterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)try again in (\d+(?:\.\d+)?)\s*s`),
	regexp.MustCompile(`(?i)retry after (\d+(?:\.\d+)?)\s*(?:s|sec|seconds)`),
}

// RetryAfterHint extracts a provider-supplied backoff duration from a
// rate-limit error message. Returns false when the message carries none.
func RetryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	msg := err.Error()
	for _, p := range retryAfterPatterns {
		if m := p.FindStringSubmatch(msg); len(m) == 2 {
			if secs, perr := strconv.ParseFloat(m[1], 64); perr == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second)), true
			}
		}
	}
	return 0, false
}

// IsRetryable determines if an error is transient and worth retrying, so
// retries are not wasted on permanent failures (auth errors, bad SQL).
// Errors implementing RetryableError declare it themselves; anything else is
// pattern-matched against known transient error strings.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if r, ok := err.(RetryableError); ok {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"timed out",
		"temporary failure",
		"i/o timeout",
		"network is unreachable",
		"429",
		"500",
		"502",
		"503",
		"504",
		"rate limit",
		"service unavailable",
		"too many requests",
		"model is loading",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
