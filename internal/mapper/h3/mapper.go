package h3mapper

import (
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// avg hexagon edge length in km per resolution
var edgeKm = [16]float64{
	1281.256, 483.057, 182.513, 68.979, 26.072, 9.854, 3.725, 1.406,
	0.531, 0.201, 0.076, 0.029, 0.011, 0.004, 0.0015, 0.00058,
}

const kmPerDegree = 111.32

// h3 polygons must stay well under a hemisphere wide
const maxSpanDeg = 90.0

// CellsForBounds returns a sorted, unique superset of the cells that overlap
// b. The box is padded by two average edge lengths before the center-based
// polyfill, which catches cells clipped by the box edges and boxes smaller
// than a cell.
func (m *Mapper) CellsForBounds(b model.Bounds, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	margin := 2 * edgeKm[res]
	latPad := margin / kmPerDegree
	phi := math.Min(math.Max(math.Abs(b.Top), math.Abs(b.Bottom))+latPad, 89)
	lonPad := margin / (kmPerDegree * math.Cos(phi*math.Pi/180))

	top := math.Min(b.Top+latPad, 90)
	bottom := math.Max(b.Bottom-latPad, -90)
	left := math.Max(b.Left-lonPad, -180)
	right := math.Min(b.Right+lonPad, 180)

	seen := map[string]struct{}{}
	for lo := left; lo < right; lo += maxSpanDeg {
		hi := math.Min(lo+maxSpanDeg, right)
		outer := h3.GeoLoop{
			{Lat: bottom, Lng: lo},
			{Lat: bottom, Lng: hi},
			{Lat: top, Lng: hi},
			{Lat: top, Lng: lo},
		}
		cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range cells {
			seen[c.String()] = struct{}{}
		}
	}

	for _, ll := range [][2]float64{{b.Bottom, b.Left}, {b.Bottom, b.Right}, {b.Top, b.Right}, {b.Top, b.Left}} {
		c, err := m.CellForPoint(ll[0], ll[1], res)
		if err != nil {
			return nil, err
		}
		seen[c] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mapper) CellForPoint(lat, lon float64, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("point (%g,%g) out of range", lat, lon)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
