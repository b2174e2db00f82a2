// Package breaker guards a Store with a circuit breaker so a failing
// datastore is rejected fast instead of holding every request to its timeout.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/observability"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

type Settings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests and FailureRatio decide when the circuit opens.
	MinRequests  uint32
	FailureRatio float64
}

func DefaultSettings() Settings {
	return Settings{
		Name:         "feature-store",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

type Store struct {
	next   store.Store
	cb     *gobreaker.CircuitBreaker[store.Cursor]
	logger *slog.Logger
	name   string
}

func Wrap(next store.Store, s Settings, logger *slog.Logger) *Store {
	observability.SetBreakerState(s.Name, stateValue(gobreaker.StateClosed))
	cb := gobreaker.NewCircuitBreaker[store.Cursor](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		// a caller that gave up says nothing about store health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			observability.SetBreakerState(name, stateValue(to))
		},
	})
	return &Store{next: next, cb: cb, logger: logger, name: s.Name}
}

func (b *Store) Query(ctx context.Context, p query.Predicate) (store.Cursor, error) {
	cur, err := b.cb.Execute(func() (store.Cursor, error) {
		return b.next.Query(ctx, p)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("store request rejected by circuit breaker", "breaker", b.name, "err", err)
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return cur, err
}

// Ping is not counted by the breaker; an open circuit reports unavailable.
func (b *Store) Ping(ctx context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: circuit %s open", store.ErrUnavailable, b.name)
	}
	return b.next.Ping(ctx)
}

func (b *Store) Close() error { return b.next.Close() }

func (b *Store) State() gobreaker.State { return b.cb.State() }

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
