// Package mapper converts between geographic coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
)

type Interface interface {
	CellsForBounds(b model.Bounds, res int) ([]string, error)
	CellForPoint(lat, lon float64, res int) (string, error)
}
