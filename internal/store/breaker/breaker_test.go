package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store/memory"
)

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) Query(context.Context, query.Predicate) (store.Cursor, error) {
	f.calls++
	return nil, f.err
}
func (f *failingStore) Ping(context.Context) error { return nil }
func (f *failingStore) Close() error               { return nil }

func testSettings() Settings {
	return Settings{
		Name: "test", MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute,
		MinRequests: 3, FailureRatio: 0.5,
	}
}

func TestBreaker_OpensAndRejects(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := &failingStore{err: fmt.Errorf("%w: boom", store.ErrQueryExecution)}
	b := Wrap(next, testSettings(), logger)

	for i := 0; i < 3; i++ {
		if _, err := b.Query(context.Background(), query.And{}); !errors.Is(err, store.ErrQueryExecution) {
			t.Fatalf("call %d: want ErrQueryExecution, got %v", i, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state=%s want open", b.State())
	}
	_, err := b.Query(context.Background(), query.And{})
	if !errors.Is(err, store.ErrUnavailable) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("want ErrUnavailable wrapping open state, got %v", err)
	}
	if next.calls != 3 {
		t.Fatalf("open circuit must not reach the store, calls=%d", next.calls)
	}
	if err := b.Ping(context.Background()); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Ping with open circuit: %v", err)
	}
}

func TestBreaker_CanceledCallsDoNotTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := &failingStore{err: fmt.Errorf("%w: %w", store.ErrQueryExecution, context.Canceled)}
	b := Wrap(next, testSettings(), logger)
	for i := 0; i < 5; i++ {
		_, _ = b.Query(context.Background(), query.And{})
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("state=%s want closed", b.State())
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := Wrap(memory.New(), DefaultSettings(), logger)
	cur, err := b.Query(context.Background(), query.And{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if cur.Next() {
		t.Fatal("empty store yields nothing")
	}
	_ = cur.Close()
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
