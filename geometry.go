package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// parseBbox parses the bbox query parameter: lon,lat,lon,lat with an
// optional height after each latitude. An empty string means the whole
// globe. As in GeoJSON, a west longitude greater than the east one denotes
// a box crossing the antimeridian.
func parseBbox(s string) (s2.Rect, error) {
	if strings.TrimSpace(s) == "" {
		return s2.FullRect(), nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return s2.EmptyRect(), fmt.Errorf("bad bbox %q: want 4 or 6 numbers", s)
	}
	v := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return s2.EmptyRect(), fmt.Errorf("bad bbox %q", s)
		}
		v[i] = f
	}
	if len(v) == 6 {
		v = []float64{v[0], v[1], v[3], v[4]}
	}

	west, south, east, north := v[0], v[1], v[2], v[3]
	if !s2.LatLngFromDegrees(south, west).IsValid() || !s2.LatLngFromDegrees(north, east).IsValid() {
		return s2.EmptyRect(), fmt.Errorf("bad bbox %q: coordinates out of range", s)
	}
	return s2.Rect{
		Lat: r1.Interval{
			Lo: (s1.Angle(math.Min(south, north)) * s1.Degree).Radians(),
			Hi: (s1.Angle(math.Max(south, north)) * s1.Degree).Radians(),
		},
		Lng: s1.IntervalFromEndpoints(
			(s1.Angle(west) * s1.Degree).Radians(),
			(s1.Angle(east) * s1.Degree).Radians(),
		),
	}, nil
}

// EncodeBbox returns r in GeoJSON bbox order, rounded to seven decimals,
// or nil for an empty rect.
func EncodeBbox(r s2.Rect) []float64 {
	if r.IsEmpty() {
		return nil
	}
	round := func(deg float64) float64 {
		return math.Round(deg*1e7) / 1e7
	}
	return []float64{
		round(r.Lo().Lng.Degrees()),
		round(r.Lo().Lat.Degrees()),
		round(r.Hi().Lng.Degrees()),
		round(r.Hi().Lat.Degrees()),
	}
}
