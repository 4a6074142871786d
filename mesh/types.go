package mesh

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// GeoPoint is a longitude/latitude pair in degrees.
type GeoPoint struct {
	Lon float64
	Lat float64
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lon, p.Lat)
}

// Ring is a closed sequence of points. The closing duplicate is optional.
type Ring []GeoPoint

// Polygon is an outer ring followed by zero or more holes.
type Polygon []Ring

// MultiPolygon is an ordered sequence of polygons.
type MultiPolygon []Polygon

// Mesh holds the buffers produced for one geometry.
//
// Indices come in triples, each an offset into Positions. Lines holds
// unindexed segment endpoints in pairs.
type Mesh struct {
	Positions []r3.Vector
	Indices   []uint32
	Lines     []r3.Vector
}

// NumTriangles returns the number of indexed triangles.
func (m *Mesh) NumTriangles() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh carries no geometry at all.
func (m *Mesh) IsEmpty() bool {
	return len(m.Positions) == 0 && len(m.Lines) == 0
}

// Validate checks the buffer invariants: complete triangles, complete line
// segments and no index pointing past the position buffer.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3",
			ErrMergeSizeMismatch, len(m.Indices))
	}
	if len(m.Lines)%2 != 0 {
		return fmt.Errorf("%w: %d line vertices is not a multiple of 2",
			ErrMergeSizeMismatch, len(m.Lines))
	}
	n := uint32(len(m.Positions))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d out of range for %d positions",
				ErrMergeSizeMismatch, idx, i, n)
		}
	}
	return nil
}

// FlatPositions returns the positions as x,y,z triples, the layout GPU
// vertex buffers expect.
func (m *Mesh) FlatPositions() []float64 {
	return flatten(m.Positions)
}

// FlatLines returns the line vertices as x,y,z triples.
func (m *Mesh) FlatLines() []float64 {
	return flatten(m.Lines)
}

func flatten(vs []r3.Vector) []float64 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}
