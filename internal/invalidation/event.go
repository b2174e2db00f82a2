// Package invalidation defines the ingest notification the event store
// publishes when GDELT rows are written.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
)

var ErrInvalidEvent = errors.New("invalid ingest event")

type Event struct {
	Version uint64        `json:"version"`
	Op      string        `json:"op"`
	Layer   string        `json:"layer"`
	ID      string        `json:"id"`
	TS      time.Time     `json:"ts"`
	Point   *Point        `json:"point,omitempty"`
	BBox    *model.Bounds `json:"bbox,omitempty"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return fmt.Errorf("%w: version must be >= 1", ErrInvalidEvent)
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("%w: op must be insert|update|delete", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Layer) == "" {
		return fmt.Errorf("%w: layer is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if (e.Point != nil) == (e.BBox != nil) {
		return fmt.Errorf("%w: exactly one of point or bbox is required", ErrInvalidEvent)
	}
	if p := e.Point; p != nil {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("%w: point out of range", ErrInvalidEvent)
		}
		return nil
	}
	b := *e.BBox
	if b.Left < -180 || b.Right > 180 || b.Bottom < -90 || b.Top > 90 {
		return fmt.Errorf("%w: bbox out of range", ErrInvalidEvent)
	}
	if b.Right < b.Left || b.Top < b.Bottom {
		return fmt.Errorf("%w: bbox must satisfy right>=left and top>=bottom", ErrInvalidEvent)
	}
	return nil
}

// Bounds is the area touched by the write; a point is a degenerate box.
func (e Event) Bounds() model.Bounds {
	if e.Point != nil {
		return model.Bounds{Top: e.Point.Lat, Right: e.Point.Lon, Bottom: e.Point.Lat, Left: e.Point.Lon}
	}
	if e.BBox != nil {
		return *e.BBox
	}
	return model.Bounds{}
}

// DedupeKey identifies the row whose versions are compared.
func (e Event) DedupeKey() string { return e.Layer + "|" + e.ID }
