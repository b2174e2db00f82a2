// Package cellindex maps H3 cells to the cached response keys whose request
// bounds cover them, so an ingest at a point can find every stale response.
package cellindex

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache/keys"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache/redisstore"
)

type CellIndex interface {
	Add(ctx context.Context, layer string, res int, cells []string, key string, ttl time.Duration) error
	Keys(ctx context.Context, layer string, res int, cells []string) ([]string, error)
}

type redisCellIndex struct {
	cli      *redisstore.Client
	maxCells int
}

// NewRedisIndex stores the index as Redis sets. Keys covering more than
// maxCells cells go to the layer-wide set; maxCells <= 0 disables the cap.
func NewRedisIndex(cli *redisstore.Client, maxCells int) CellIndex {
	return &redisCellIndex{cli: cli, maxCells: maxCells}
}

func (ci *redisCellIndex) Add(
	ctx context.Context,
	layer string,
	res int,
	cells []string,
	key string,
	ttl time.Duration,
) error {
	var sets []string
	if len(cells) == 0 || (ci.maxCells > 0 && len(cells) > ci.maxCells) {
		sets = []string{keys.LayerSet(layer)}
	} else {
		sets = make([]string, 0, len(cells))
		for _, c := range cells {
			sets = append(sets, keys.CellSet(layer, res, c))
		}
	}
	if err := ci.cli.SAddWithTTL(ctx, sets, key, ttl); err != nil {
		return fmt.Errorf("cellindex add %q: %w", key, err)
	}
	return nil
}

// Keys always includes the layer-wide set.
func (ci *redisCellIndex) Keys(ctx context.Context, layer string, res int, cells []string) ([]string, error) {
	sets := make([]string, 0, len(cells)+1)
	for _, c := range cells {
		sets = append(sets, keys.CellSet(layer, res, c))
	}
	sets = append(sets, keys.LayerSet(layer))

	members, err := ci.cli.SUnion(ctx, sets...)
	if err != nil {
		return nil, fmt.Errorf("cellindex lookup: %w", err)
	}
	slices.Sort(members)
	return members, nil
}
