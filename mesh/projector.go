package mesh

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// Mode selects the target surface of a conversion.
type Mode int

const (
	// Spherical places vertices on a sphere, north pole at +y.
	Spherical Mode = iota
	// Planar places vertices on the y=0 plane, north towards -z.
	Planar
)

func (m Mode) String() string {
	switch m {
	case Spherical:
		return "sphere"
	case Planar:
		return "flat"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names used in configuration files and query strings.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sphere", "spherical", "globe":
		return Spherical, nil
	case "flat", "plane", "planar":
		return Planar, nil
	default:
		return Spherical, fmt.Errorf("unknown projection mode %q", s)
	}
}

// Projector maps a geographic point to a vertex.
type Projector interface {
	Project(p GeoPoint) (r3.Vector, error)
}

// Sphere projects onto a sphere of the given radius. Longitude ±180 is the
// seam, latitude 90 is the +y pole.
type Sphere struct {
	Radius float64
}

func (s Sphere) Project(p GeoPoint) (r3.Vector, error) {
	if err := checkCoordinate(p); err != nil {
		return r3.Vector{}, err
	}
	// s2 uses z for the pole; rotate so that y points north and the seam
	// sits at -x, matching the usual three-dimensional scene convention.
	v := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
	return r3.Vector{X: v.X, Y: v.Z, Z: -v.Y}.Mul(s.Radius), nil
}

// Plane projects through a 2D Projection onto a horizontal plane at height
// Height. Projected x stays x, projected y becomes -z.
type Plane struct {
	Projection Projection
	Height     float64
}

func (pl Plane) Project(p GeoPoint) (r3.Vector, error) {
	if err := checkCoordinate(p); err != nil {
		return r3.Vector{}, err
	}
	q := pl.Projection.Project(p.Lon, p.Lat)
	if math.IsNaN(q.X) || math.IsNaN(q.Y) || math.IsInf(q.X, 0) || math.IsInf(q.Y, 0) {
		return r3.Vector{}, fmt.Errorf("%w: %v has no finite projection", ErrInvalidCoordinate, p)
	}
	return r3.Vector{X: q.X, Y: pl.Height, Z: -q.Y}, nil
}

// Project maps p with the default projector for mode.
func Project(p GeoPoint, radius float64, mode Mode) (r3.Vector, error) {
	switch mode {
	case Spherical:
		return Sphere{Radius: radius}.Project(p)
	case Planar:
		return Plane{Projection: Equirectangular{Radius: radius}}.Project(p)
	default:
		return r3.Vector{}, fmt.Errorf("unknown projection mode %v", mode)
	}
}

func checkCoordinate(p GeoPoint) error {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
		return fmt.Errorf("%w: NaN in %v", ErrInvalidCoordinate, p)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %g out of range", ErrInvalidCoordinate, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %g out of range", ErrInvalidCoordinate, p.Lat)
	}
	return nil
}
