package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	maxJitter          = time.Second
)

// Transport error codes that are always worth another attempt.
const (
	CodeConnReset   = "ECONNRESET"
	CodeTimedOut    = "ETIMEDOUT"
	CodeNotFound    = "ENOTFOUND"
	CodeConnAborted = "ECONNABORTED"
)

var (
	retryableCodes = map[string]bool{
		CodeConnReset:   true,
		CodeTimedOut:    true,
		CodeNotFound:    true,
		CodeConnAborted: true,
	}
	retryableStatuses = map[int]bool{
		429: true,
		500: true,
		502: true,
		503: true,
	}
)

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// ErrorCoder is implemented by errors that carry a transport error code.
type ErrorCoder interface {
	ErrorCode() string
}

// Delayer is implemented by errors that dictate the delay before the next attempt,
// e.g. from a Retry-After response header.
type Delayer interface {
	RetryDelay() (time.Duration, bool)
}

// IsRetryable reports whether err is a transient failure: a connection reset,
// timeout or DNS failure, or one of the HTTP statuses 429, 500, 502 and 503.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var coder ErrorCoder
	if errors.As(err, &coder) && retryableCodes[coder.ErrorCode()] {
		return true
	}
	var status StatusCoder
	if errors.As(err, &status) && retryableStatuses[status.HTTPStatus()] {
		return true
	}
	return false
}

// State of a Do call.
type State int

const (
	Attempting State = iota
	Waiting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "Attempting"
	case Waiting:
		return "Waiting"
	case Success:
		return "Success"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// Policy configures Do. The zero value is usable and falls back to defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// ShouldRetry defaults to IsRetryable.
	ShouldRetry func(err error) bool
	// Sleep blocks for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a random delay added to the exponential backoff.
	Jitter func() time.Duration
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Backoff returns the exponential delay before the attempt following the given one,
// capped at MaxDelay and excluding jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, p.MaxDelay)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = IsRetryable
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	if p.Jitter == nil {
		p.Jitter = Jitter
	}
	return p
}

// Do runs fn until it succeeds, fails with an error that should not be retried,
// or MaxAttempts is reached. The last error is returned as is.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	p := policy.withDefaults()

	var (
		state   = Attempting
		attempt = 1
		result  T
		err     error
		delay   time.Duration
	)

	for {
		switch state {
		case Attempting:
			result, err = fn(ctx, attempt)
			switch {
			case err == nil:
				state = Success
			case attempt >= p.MaxAttempts || !p.ShouldRetry(err):
				state = Failed
			default:
				delay = p.nextDelay(attempt, err)
				if p.OnRetry != nil {
					p.OnRetry(attempt, err, delay)
				}
				state = Waiting
			}
		case Waiting:
			if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
				log.WithFields(log.Fields{
					"attempt": attempt,
				}).Debug("Retry wait interrupted")
				var zero T
				return zero, sleepErr
			}
			attempt++
			state = Attempting
		case Success:
			return result, nil
		case Failed:
			var zero T
			return zero, err
		}
	}
}

func (p Policy) nextDelay(attempt int, err error) time.Duration {
	var delayer Delayer
	if errors.As(err, &delayer) {
		if d, ok := delayer.RetryDelay(); ok {
			return d
		}
	}
	return p.Backoff(attempt) + p.Jitter()
}

// Sleep waits for d without blocking cancellation of ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter returns a random duration in [0, 1s).
func Jitter() time.Duration {
	return rand.N(maxJitter) // #nosec G404 -- jitter does not need a secure source
}
