// Package events runs a search: build the predicate, consult the response
// cache, query the store and project the cursor.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/observability"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/logger"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/projector"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

// Cache never fails a search; implementations log their own errors.
type Cache interface {
	Get(ctx context.Context, req model.FilterRequest) (model.EventList, bool)
	Put(ctx context.Context, req model.FilterRequest, list model.EventList)
}

type Options struct {
	QueryTimeout time.Duration
	MaxResults   int
	Dump         bool
}

type Service struct {
	store  store.Store
	cache  Cache
	opts   Options
	logger *slog.Logger
}

// New wires a service; a nil cache disables caching.
func New(st store.Store, c Cache, opts Options, l *slog.Logger) *Service {
	return &Service{store: st, cache: c, opts: opts, logger: l}
}

func (s *Service) Search(ctx context.Context, req model.FilterRequest) (model.EventList, error) {
	ctx = logger.WithComponent(ctx, "events")

	pred, err := query.Build(req)
	if err != nil {
		observability.IncSearchError(Class(err))
		return model.EventList{}, fmt.Errorf("build predicate: %w", err)
	}

	if s.cache != nil {
		if list, ok := s.cache.Get(ctx, req); ok {
			s.logger.DebugContext(ctx, "response cache hit", "events", len(list.Events))
			return list, nil
		}
	}

	qctx := ctx
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	cur, err := s.store.Query(qctx, pred)
	if err != nil {
		observability.IncSearchError(Class(err))
		return model.EventList{}, fmt.Errorf("query store: %w", err)
	}
	list, err := projector.Project(qctx, s.logger, cur, req, projector.Options{
		MaxResults: s.opts.MaxResults,
		Dump:       s.opts.Dump,
	})
	if err != nil {
		observability.IncSearchError(Class(err))
		return model.EventList{}, err
	}

	observability.ObserveSearchResults(len(list.Events))
	s.logger.InfoContext(ctx, "search done",
		"events", len(list.Events),
		"truncated", list.Truncated,
		"duration", time.Since(start).String())

	if s.cache != nil {
		s.cache.Put(ctx, req, list)
	}
	return list, nil
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// Class names the error family used for metrics and HTTP status mapping.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, query.ErrInvalidRange), errors.Is(err, query.ErrIncomplete):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, store.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, store.ErrQueryExecution):
		return "query"
	default:
		return "internal"
	}
}
