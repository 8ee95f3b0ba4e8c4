package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/logger"
)

// callPolicy bounds every outbound provider call with a timeout, a
// shared rate limit and bounded retries with exponential backoff.
// Only transient failures are retried; fatal and caller errors surface
// immediately.
type callPolicy struct {
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
}

func newCallPolicy(s domain.ProviderCallSettings) *callPolicy {
	p := &callPolicy{
		timeout:    s.Timeout,
		maxRetries: s.MaxRetries,
		backoff:    s.RetryBackoff,
	}
	if p.timeout <= 0 {
		p.timeout = 60 * time.Second
	}
	if p.backoff <= 0 {
		p.backoff = 500 * time.Millisecond
	}
	if s.RatePerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(s.RatePerMinute)/60.0), s.RatePerMinute)
	}
	return p
}

// do runs fn under the policy. The last transient error is wrapped in
// domain.ErrProviderUnavailable when retries are exhausted.
func (p *callPolicy) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := p.backoff

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying %s (attempt %d/%d) after %s", name, attempt, p.maxRetries, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	if errors.Is(lastErr, domain.ErrProviderUnavailable) {
		return lastErr
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, name, lastErr)
}

// retryable reports whether an error is worth another attempt.
// Unreadable documents and invalid input never are; timeouts and
// provider outages are.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrDocumentUnreadable),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}
