package kafka

import (
	"context"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
)

// Invalidator drops cached responses whose query area overlaps b.
type Invalidator interface {
	Invalidate(ctx context.Context, layer string, b model.Bounds) (int, error)
}
