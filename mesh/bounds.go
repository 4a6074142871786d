package mesh

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/go.geojson"
)

// BoundingBox is a longitude/latitude box in degrees. It knows nothing about
// the antimeridian: a shape spanning the seam gets a box spanning nearly
// the whole globe.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// EmptyBoundingBox returns a box that contains nothing; extending it with a
// point yields a box around that point.
func EmptyBoundingBox() BoundingBox {
	return BoundingBox{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
}

func (b BoundingBox) IsEmpty() bool {
	return !(b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat)
}

// Extend returns b grown to include (lon, lat).
func (b BoundingBox) Extend(lon, lat float64) BoundingBox {
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	return b
}

// Union returns the smallest box containing b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return b.Extend(o.MinLon, o.MinLat).Extend(o.MaxLon, o.MaxLat)
}

// Slice encodes b in GeoJSON bbox order, or nil if b is empty.
func (b BoundingBox) Slice() []float64 {
	if b.IsEmpty() {
		return nil
	}
	return []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// Rect converts b into an s2.Rect covering the same longitude range.
func (b BoundingBox) Rect() s2.Rect {
	if b.IsEmpty() {
		return s2.EmptyRect()
	}
	return s2.Rect{
		Lat: r1.Interval{
			Lo: (s1.Angle(b.MinLat) * s1.Degree).Radians(),
			Hi: (s1.Angle(b.MaxLat) * s1.Degree).Radians(),
		},
		Lng: s1.IntervalFromEndpoints(
			(s1.Angle(b.MinLon) * s1.Degree).Radians(),
			(s1.Angle(b.MaxLon) * s1.Degree).Radians(),
		),
	}
}

// Bounds returns the box around every coordinate of g.
func Bounds(g *geojson.Geometry) BoundingBox {
	b := EmptyBoundingBox()
	if g == nil {
		return b
	}

	switch g.Type {
	case geojson.GeometryPoint:
		return extendPoint(b, g.Point)

	case geojson.GeometryMultiPoint, geojson.GeometryLineString:
		pts := g.MultiPoint
		if g.Type == geojson.GeometryLineString {
			pts = g.LineString
		}
		for _, p := range pts {
			b = extendPoint(b, p)
		}
		return b

	case geojson.GeometryMultiLineString:
		return extendLines(b, g.MultiLineString)

	case geojson.GeometryPolygon:
		return extendLines(b, g.Polygon)

	case geojson.GeometryMultiPolygon:
		for _, poly := range g.MultiPolygon {
			b = extendLines(b, poly)
		}
		return b

	case geojson.GeometryCollection:
		for _, member := range g.Geometries {
			b = b.Union(Bounds(member))
		}
		return b

	default:
		return b
	}
}

// FeatureBounds returns the box around the geometry of f.
func FeatureBounds(f *geojson.Feature) BoundingBox {
	if f == nil {
		return EmptyBoundingBox()
	}
	return Bounds(f.Geometry)
}

func extendPoint(b BoundingBox, p []float64) BoundingBox {
	if len(p) < 2 {
		return b
	}
	return b.Extend(p[0], p[1])
}

func extendLines(b BoundingBox, lines [][][]float64) BoundingBox {
	for _, line := range lines {
		for _, p := range line {
			b = extendPoint(b, p)
		}
	}
	return b
}

func ringBounds(r Ring) BoundingBox {
	b := EmptyBoundingBox()
	for _, p := range r {
		b = b.Extend(p.Lon, p.Lat)
	}
	return b
}
