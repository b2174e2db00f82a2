// Package memory is a Store that evaluates predicates over features held in
// process. It backs tests and offline demos seeded from a GeoJSON export.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/config"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/observability"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

const backendName = "memory"

func init() {
	store.Register(backendName, Open)
}

type Store struct {
	mu       sync.RWMutex
	features []gdelt.Feature
	closed   bool
}

// Open loads cfg.SeedFile when set; otherwise the store starts empty.
func Open(_ context.Context, cfg config.StoreCfg, logger *slog.Logger) (store.Store, error) {
	s := New()
	if cfg.SeedFile == "" {
		logger.Info("opening feature store", "backend", backendName, "features", 0)
		return s, nil
	}
	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("%w: open seed: %w", store.ErrUnavailable, err)
	}
	defer func() { _ = f.Close() }()
	features, err := gdelt.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read seed %s: %w", store.ErrUnavailable, cfg.SeedFile, err)
	}
	s.Add(features...)
	logger.Info("opening feature store", "backend", backendName, "seed", cfg.SeedFile, "features", len(features))
	return s, nil
}

func New(features ...gdelt.Feature) *Store {
	s := &Store{}
	s.Add(features...)
	return s
}

func (s *Store) Add(features ...gdelt.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = append(s.features, features...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Query snapshots the current features; later Adds are not visible to the
// returned cursor.
func (s *Store) Query(ctx context.Context, p query.Predicate) (store.Cursor, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store closed", store.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryExecution, err)
	}
	snap := make([]gdelt.Feature, len(s.features))
	copy(snap, s.features)
	observability.ObserveStoreQuery(backendName, "ok", time.Since(start).Seconds())
	return &cursor{ctx: ctx, features: snap, pred: p, pos: -1}, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", store.ErrUnavailable)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type cursor struct {
	ctx      context.Context
	features []gdelt.Feature
	pred     query.Predicate
	pos      int
	err      error
	closed   bool
}

func (c *cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	for c.pos+1 < len(c.features) {
		if err := c.ctx.Err(); err != nil {
			c.err = fmt.Errorf("%w: %w", store.ErrQueryExecution, err)
			return false
		}
		c.pos++
		if c.pred.Eval(c.features[c.pos]) {
			return true
		}
	}
	return false
}

func (c *cursor) Feature() gdelt.Feature { return c.features[c.pos] }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.closed = true
	c.features = nil
	return nil
}
