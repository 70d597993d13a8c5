package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = gobreaker.ErrOpenState
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	// IgnoreErrors are not counted as failures (e.g. caller cancellation).
	IgnoreErrors []error
	Logger       *zap.Logger
}

// CircuitBreaker guards calls to a remote dependency. It trips after
// FailureThreshold consecutive failures and probes again after Timeout.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ignored := append([]error{context.Canceled}, cfg.IgnoreErrors...)
	log := cfg.Logger

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			for _, target := range ignored {
				if errors.Is(err, target) {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &CircuitBreaker{
		name: name,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (c *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (c *CircuitBreaker) Name() string {
	return c.name
}

func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// IsOpen reports whether err was produced by a breaker rejecting the call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
