// Package cache keeps search responses in Redis and drops them when ingest
// touches the H3 cells their bounds cover.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache/cellindex"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache/keys"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/observability"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/mapper"
)

type Options struct {
	Layer     string
	Res       int
	TTL       time.Duration
	OpTimeout time.Duration
	MaxCells  int
}

type Responses struct {
	cli    *redisstore.Client
	index  cellindex.CellIndex
	mapper mapper.Interface
	opts   Options
	logger *slog.Logger
}

func New(cli *redisstore.Client, m mapper.Interface, opts Options, logger *slog.Logger) *Responses {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	return &Responses{
		cli:    cli,
		index:  cellindex.NewRedisIndex(cli, opts.MaxCells),
		mapper: m,
		opts:   opts,
		logger: logger,
	}
}

// Get reports ok only for a decodable hit. Redis failures count as misses.
// The returned list echoes req, not the request that filled the entry.
func (r *Responses) Get(ctx context.Context, req model.FilterRequest) (model.EventList, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.OpTimeout)
	defer cancel()

	key := keys.Response(r.opts.Layer, req)
	raw, found, err := r.cli.Get(ctx, key)
	if err != nil {
		observability.IncCacheError()
		r.logger.Warn("response cache get failed", "key", key, "err", err)
		return model.EventList{}, false
	}
	if !found {
		observability.IncCacheMiss()
		return model.EventList{}, false
	}
	var list model.EventList
	if err := json.Unmarshal(raw, &list); err != nil {
		observability.IncCacheError()
		r.logger.Warn("response cache entry undecodable", "key", key, "err", err)
		return model.EventList{}, false
	}
	observability.IncCacheHit()
	// equivalent requests share a key; the echo is always the caller's own
	hit := model.NewEventList(req)
	if list.Events != nil {
		hit.Events = list.Events
	}
	hit.Truncated = list.Truncated
	return hit, true
}

// Put stores list and indexes its key by the cells of the request bounds.
func (r *Responses) Put(ctx context.Context, req model.FilterRequest, list model.EventList) {
	if req.Bounds == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.OpTimeout)
	defer cancel()

	key := keys.Response(r.opts.Layer, req)
	if err := r.put(ctx, key, *req.Bounds, list); err != nil {
		observability.IncCacheError()
		r.logger.Warn("response cache put failed", "key", key, "err", err)
	}
}

func (r *Responses) put(ctx context.Context, key string, b model.Bounds, list model.EventList) error {
	cells, err := r.mapper.CellsForBounds(b, r.opts.Res)
	if err != nil {
		return fmt.Errorf("cover bounds: %w", err)
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	// indexed before stored; an unindexed entry could not be invalidated
	if err := r.index.Add(ctx, r.opts.Layer, r.opts.Res, cells, key, r.opts.TTL); err != nil {
		return err
	}
	if err := r.cli.Set(ctx, key, payload, r.opts.TTL); err != nil {
		return err
	}
	return nil
}

// Invalidate deletes every response indexed under the cells covering b,
// plus the layer-wide set, and returns how many keys were dropped.
func (r *Responses) Invalidate(ctx context.Context, layer string, b model.Bounds) (int, error) {
	cells, err := r.mapper.CellsForBounds(b, r.opts.Res)
	if err != nil {
		return 0, fmt.Errorf("cover bounds: %w", err)
	}
	stale, err := r.index.Keys(ctx, layer, r.opts.Res, cells)
	if err != nil {
		return 0, err
	}
	if err := r.cli.Del(ctx, stale...); err != nil {
		return 0, err
	}
	observability.AddInvalidatedKeys(len(stale))
	return len(stale), nil
}

func (r *Responses) Ping(ctx context.Context) error { return r.cli.Ping(ctx) }

func (r *Responses) Close() error { return r.cli.Close() }
