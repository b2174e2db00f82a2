package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/config"
)

type Factory func(ctx context.Context, cfg config.StoreCfg, logger *slog.Logger) (Store, error)

var (
	mu  sync.RWMutex
	reg = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = f
}

// Open builds the backend registered under name. Unknown names fail; a
// misconfigured deployment must not silently query the wrong store.
func Open(ctx context.Context, name string, cfg config.StoreCfg, logger *slog.Logger) (Store, error) {
	mu.RLock()
	f, ok := reg[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no store backend %q (registered: %v)", ErrUnavailable, name, Backends())
	}
	return f(ctx, cfg, logger)
}

func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParamsFrom maps the store config onto the connection bundle.
func ParamsFrom(cfg config.StoreCfg) Params {
	return Params{
		User:         cfg.User,
		Password:     cfg.Password,
		InstanceID:   cfg.InstanceID,
		Zookeepers:   cfg.Zookeepers,
		TableName:    cfg.TableName,
		CollectStats: cfg.CollectStats,
		TypeName:     cfg.TypeName,
	}
}
