package mesh

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// maxSamplesPerEdge bounds densification of a single edge.
const maxSamplesPerEdge = 4096

func latLng(p GeoPoint) s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// Distance returns the central angle between a and b (haversine).
func Distance(a, b GeoPoint) s1.Angle {
	return latLng(a).Distance(latLng(b))
}

// Interpolate returns the great-circle path from a to b, parameterized by
// t in [0, 1]. The endpoints are returned verbatim; t outside [0, 1] is
// clamped. Interior longitudes are normalized.
func Interpolate(a, b GeoPoint) func(t float64) GeoPoint {
	if Distance(a, b) == 0 {
		return func(t float64) GeoPoint {
			if t >= 1 {
				return b
			}
			return a
		}
	}
	pa, pb := s2.PointFromLatLng(latLng(a)), s2.PointFromLatLng(latLng(b))
	return func(t float64) GeoPoint {
		switch {
		case t <= 0:
			return a
		case t >= 1:
			return b
		}
		ll := s2.LatLngFromPoint(s2.Interpolate(t, pa, pb))
		return GeoPoint{Lon: NormalizeLon(ll.Lng.Degrees()), Lat: ll.Lat.Degrees()}
	}
}

// DensifyRing densifies every edge of r like DensifyPath, including the
// closing edge of a ring given without its closing duplicate. The result
// always ends with its first point.
func DensifyRing(r Ring, samplesPerUnitDistance float64) Ring {
	return DensifyPath(closeRing(r), samplesPerUnitDistance)
}

// DensifyPath inserts great-circle samples into every edge of the polyline
// p so that no edge subtends much more than 1/samplesPerUnitDistance
// radians. Each edge gets max(2, ceil(distance*rate)) samples including
// both ends, and the input points are kept as they are. A non-positive
// rate returns a plain copy.
func DensifyPath(p Ring, samplesPerUnitDistance float64) Ring {
	out := make(Ring, 0, len(p))
	if len(p) < 2 || !(samplesPerUnitDistance > 0) || math.IsInf(samplesPerUnitDistance, 1) {
		return append(out, p...)
	}
	for i := 0; i+1 < len(p); i++ {
		a, b := p[i], p[i+1]
		out = append(out, a)
		n := edgeSamples(Distance(a, b), samplesPerUnitDistance)
		if n <= 2 {
			continue
		}
		at := Interpolate(a, b)
		for k := 1; k < n-1; k++ {
			out = append(out, at(float64(k)/float64(n-1)))
		}
	}
	return append(out, p[len(p)-1])
}

func edgeSamples(d s1.Angle, rate float64) int {
	f := math.Ceil(d.Radians() * rate)
	switch {
	case math.IsNaN(f) || f < 2:
		return 2
	case f > maxSamplesPerEdge:
		return maxSamplesPerEdge
	default:
		return int(f)
	}
}
