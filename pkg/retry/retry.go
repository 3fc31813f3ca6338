// Package retry wraps asynchronous operations with bounded retries and
// deterministic exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_retries_total",
		Help: "Total number of retry attempts by reason (HTTP status or error code)",
	}, []string{"reason"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_retry_exhausted_total",
		Help: "Total number of operations that exhausted all retry attempts",
	})
)

// ErrContextCancelled is returned when the context is cancelled during a
// backoff wait.
var ErrContextCancelled = errors.New("context cancelled during retry backoff")

// StatusCoder is implemented by errors carrying an upstream HTTP status,
// which the retry decision matches against Options.RetryableStatuses.
type StatusCoder interface {
	HTTPStatus() int
}

// Options is the per-call retry policy.
type Options struct {
	// MaxRetries is the number of retries after the initial attempt.
	// MaxRetries=3 means up to 4 invocations.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// RetryableStatuses are the HTTP status codes worth retrying.
	RetryableStatuses map[int]struct{}

	// RetryableErrors are the transport error codes worth retrying.
	RetryableErrors map[string]struct{}
}

// DefaultOptions returns the policy used for upstream market data calls:
// 3 retries, 1s initial delay doubling up to 30s, retrying rate limits,
// server errors and transient transport failures.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		RetryableStatuses: map[int]struct{}{
			429: {}, 500: {}, 502: {}, 503: {}, 504: {},
		},
		RetryableErrors: map[string]struct{}{
			"ECONNRESET":   {},
			"ECONNREFUSED": {},
			"ETIMEDOUT":    {},
			"ENOTFOUND":    {},
			"EPIPE":        {},
		},
	}
}

// Do executes op with bounded retries and exponential backoff.
//
// The delay before retry n (0-indexed) is min(InitialDelay*2^n, MaxDelay),
// with no jitter, so schedules are deterministic. Non-retryable errors
// return immediately without consuming a retry attempt. When all attempts
// are exhausted the last error is returned unchanged, preserving the
// caller's ability to classify it.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Int("attempt", attempt+1).
					Msg("Operation succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		reason, retryable := classify(err, opts)
		if !retryable {
			return zero, lastErr
		}

		if attempt >= opts.MaxRetries {
			break
		}

		delay := delayFor(opts, attempt)
		retriesTotal.WithLabelValues(reason).Inc()
		log.Debug().
			Str("reason", reason).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying operation after backoff")

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	retryExhaustedTotal.Inc()
	log.Warn().
		Int("max_retries", opts.MaxRetries).
		Err(lastErr).
		Msg("Retry attempts exhausted")

	return zero, lastErr
}

// delayFor computes the deterministic backoff before retry attempt
// (0-indexed): min(InitialDelay*2^attempt, MaxDelay).
func delayFor(opts Options, attempt int) time.Duration {
	delay := opts.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if opts.MaxDelay > 0 && delay >= opts.MaxDelay {
			return opts.MaxDelay
		}
	}
	return delay
}

// classify decides whether err is retryable under opts and names the
// reason for metrics: the HTTP status when the error carries one, the
// transport error code otherwise.
func classify(err error, opts Options) (string, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		_, ok := opts.RetryableStatuses[status]
		return fmt.Sprintf("%d", status), ok
	}

	code := errorCode(err)
	if code == "" {
		return "other", false
	}
	_, ok := opts.RetryableErrors[code]
	return code, ok
}

// errorCode maps transport-level failures to the code strings used in
// Options.RetryableErrors. Unknown errors map to "".
func errorCode(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.EPIPE):
		return "EPIPE"
	case errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "ENOTFOUND"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}

	return ""
}
