package api

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const squareMetersPerHectare = 10_000

// closeBoundary validates a [lng, lat] polygon, closes the ring and returns
// it with its geodesic area in hectares.
func closeBoundary(points [][2]float64) ([][2]float64, float64, error) {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			return nil, 0, invalid("boundary point %v is out of range", p)
		}
		ring = append(ring, orb.Point(p))
	}

	distinct := slices.Clone(ring)
	slices.SortFunc(distinct, func(a, b orb.Point) int {
		if a[0] != b[0] {
			return cmpFloat(a[0], b[0])
		}
		return cmpFloat(a[1], b[1])
	})
	distinct = slices.Compact(distinct)
	if len(distinct) < 3 {
		return nil, 0, invalid("boundary needs at least 3 distinct points")
	}

	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	area := math.Abs(geo.Area(orb.Polygon{ring})) / squareMetersPerHectare
	if area == 0 {
		return nil, 0, invalid("boundary must enclose an area")
	}

	out := make([][2]float64, len(ring))
	for i, p := range ring {
		out[i] = [2]float64(p)
	}
	return out, math.Round(area*100) / 100, nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
