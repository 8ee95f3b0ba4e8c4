package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/core/domain"
)

func TestCallPolicy_SucceedsWithoutRetry(t *testing.T) {
	policy := newCallPolicy(fastCall())

	calls := 0
	err := policy.do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallPolicy_RetriesTransientThenSucceeds(t *testing.T) {
	policy := newCallPolicy(fastCall())

	calls := 0
	err := policy.do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: connection refused", domain.ErrProviderUnavailable)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCallPolicy_FatalErrorSurfacesImmediately(t *testing.T) {
	policy := newCallPolicy(fastCall())

	calls := 0
	err := policy.do(context.Background(), "op", func(context.Context) error {
		calls++
		return fmt.Errorf("%w: garbled scan", domain.ErrDocumentUnreadable)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentUnreadable)
	assert.Equal(t, 1, calls, "unreadable documents must not be retried")
}

func TestCallPolicy_ExhaustedRetriesWrapUnavailable(t *testing.T) {
	policy := newCallPolicy(fastCall())

	calls := 0
	err := policy.do(context.Background(), "embed", func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestCallPolicy_UnavailableNotDoubleWrapped(t *testing.T) {
	policy := newCallPolicy(fastCall())

	wrapped := fmt.Errorf("%w: 503 from upstream", domain.ErrProviderUnavailable)
	err := policy.do(context.Background(), "op", func(context.Context) error {
		return wrapped
	})

	require.Error(t, err)
	assert.Equal(t, wrapped, err)
}

func TestCallPolicy_CancelledContextStopsRetries(t *testing.T) {
	policy := newCallPolicy(fastCall())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := policy.do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return fmt.Errorf("%w: flapping", domain.ErrProviderUnavailable)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryable_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"provider unavailable", domain.ErrProviderUnavailable, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped unavailable", fmt.Errorf("embed: %w", domain.ErrProviderUnavailable), true},
		{"document unreadable", domain.ErrDocumentUnreadable, false},
		{"invalid input", domain.ErrInvalidInput, false},
		{"cancelled", context.Canceled, false},
		{"unknown", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
