package fetcher

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quantmind-br/repo2kas/internal/domain"
)

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	maxRetries       int
	initialInterval  time.Duration
	maxInterval      time.Duration
	multiplier       float64
	maxRateLimitWait time.Duration
}

// RetrierOptions contains options for creating a Retrier
type RetrierOptions struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxRateLimitWait caps a server-advertised wait. Longer waits fail
	// immediately instead of stalling the run.
	MaxRateLimitWait time.Duration
}

// DefaultRetrierOptions returns default retrier options
func DefaultRetrierOptions() RetrierOptions {
	return RetrierOptions{
		MaxRetries:       3,
		InitialInterval:  1 * time.Second,
		MaxInterval:      30 * time.Second,
		Multiplier:       2.0,
		MaxRateLimitWait: 90 * time.Second,
	}
}

// NewRetrier creates a new Retrier with the given options.
// MaxRetries of zero disables retries; negative values take the default.
func NewRetrier(opts RetrierOptions) *Retrier {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 1 * time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	if opts.MaxRateLimitWait <= 0 {
		opts.MaxRateLimitWait = 90 * time.Second
	}

	return &Retrier{
		maxRetries:       opts.MaxRetries,
		initialInterval:  opts.InitialInterval,
		maxInterval:      opts.MaxInterval,
		multiplier:       opts.Multiplier,
		maxRateLimitWait: opts.MaxRateLimitWait,
	}
}

// newBackoff creates a new exponential backoff
func (r *Retrier) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.Multiplier = r.multiplier
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
}

// Retry executes an operation with exponential backoff
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	_, err := RetryWithValue(ctx, r, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// RetryWithValue executes an operation with exponential backoff and returns a value.
// A RetryableError carrying RetryAfter delays the next attempt by that much.
func RetryWithValue[T any](ctx context.Context, r *Retrier, operation func() (T, error)) (T, error) {
	var result T
	var lastErr error

	err := backoff.Retry(func() error {
		var err error
		result, err = operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		var retryable *domain.RetryableError
		if errors.As(err, &retryable) && retryable.RetryAfter > 0 {
			wait := time.Duration(retryable.RetryAfter) * time.Second
			if wait > r.maxRateLimitWait {
				return backoff.Permanent(err)
			}
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case <-time.After(wait):
			}
		}

		return err
	}, r.newBackoff(ctx))

	if err != nil {
		if lastErr != nil {
			return result, lastErr
		}
		return result, err
	}

	return result, nil
}

// ShouldRetryStatus returns true if the HTTP status code should be retried
func ShouldRetryStatus(statusCode int) bool {
	switch statusCode {
	case 429: // Too Many Requests
		return true
	case 502: // Bad Gateway
		return true
	case 503: // Service Unavailable
		return true
	case 504: // Gateway Timeout
		return true
	}

	// Cloudflare errors (520-530)
	if statusCode >= 520 && statusCode <= 530 {
		return true
	}

	return false
}

// ParseRetryAfter parses the Retry-After header value, either delay
// seconds or an HTTP date
func ParseRetryAfter(retryAfter string) time.Duration {
	retryAfter = strings.TrimSpace(retryAfter)
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if at, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

// ParseRateLimitReset converts an X-RateLimit-Reset epoch into a wait
// relative to now
func ParseRateLimitReset(reset string, now time.Time) time.Duration {
	epoch, err := strconv.ParseInt(strings.TrimSpace(reset), 10, 64)
	if err != nil || epoch <= 0 {
		return 0
	}
	d := time.Unix(epoch, 0).Sub(now)
	if d <= 0 {
		return 0
	}
	// round up so the quota has reset when we retry
	return d.Truncate(time.Second) + time.Second
}
