package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("index unavailable")

func TestCircuitBreaker(t *testing.T) {
	t.Run("Opens after consecutive failures", func(t *testing.T) {
		cb := NewCircuitBreaker("milvus", Config{FailureThreshold: 2, Timeout: time.Minute})

		for i := 0; i < 2; i++ {
			err := cb.Execute(context.Background(), func() error { return errRemote })
			require.ErrorIs(t, err, errRemote)
		}

		err := cb.Execute(context.Background(), func() error { return nil })
		assert.True(t, IsOpen(err))
		assert.Equal(t, "open", cb.State())
	})

	t.Run("Cancellation does not count as failure", func(t *testing.T) {
		cb := NewCircuitBreaker("llm", Config{FailureThreshold: 1})

		err := cb.Execute(context.Background(), func() error { return context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("Done context short-circuits", func(t *testing.T) {
		cb := NewCircuitBreaker("redis", Config{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
