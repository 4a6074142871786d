package mesh

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/rclancey/earcut"
)

// Triangulate ear-clips a polygon given as one flat list of vertices: the
// outer ring followed by its holes, with holeStarts[i] the index of the
// first vertex of hole i. Rings are implicitly closed; do not repeat the
// first vertex.
//
// Every returned triangle is counter clockwise (y up) and references
// vertices of coords. A simple ring of N vertices yields N-2 triangles.
func Triangulate(coords []r2.Point, holeStarts []int) ([][3]int, error) {
	if err := checkRings(coords, holeStarts); err != nil {
		return nil, err
	}

	data := make([]float64, 0, 2*len(coords))
	for _, c := range coords {
		data = append(data, c.X, c.Y)
	}
	flat, err := earcut.Earcut(data, holeStarts, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	if len(flat) == 0 || len(flat)%3 != 0 {
		return nil, fmt.Errorf("%w: %d vertices produced %d triangle indices", ErrInvalidPolygon, len(coords), len(flat))
	}

	tris := make([][3]int, len(flat)/3)
	for i := range tris {
		a, b, c := flat[3*i], flat[3*i+1], flat[3*i+2]
		if coords[b].Sub(coords[a]).Cross(coords[c].Sub(coords[a])) < 0 {
			b, c = c, b
		}
		tris[i] = [3]int{a, b, c}
	}
	return tris, nil
}

// signedArea is positive for a counter clockwise ring (y up) between start
// and end.
func signedArea(pts []r2.Point, start, end int) float64 {
	sum := 0.0
	for i, j := start, end-1; i < end; i++ {
		sum += (pts[j].X - pts[i].X) * (pts[i].Y + pts[j].Y)
		j = i
	}
	return sum
}

func checkRings(coords []r2.Point, holeStarts []int) error {
	prev := 0
	for i, start := range holeStarts {
		if start-prev < 3 {
			return fmt.Errorf("%w: ring %d has %d vertices", ErrInvalidPolygon, i, start-prev)
		}
		prev = start
	}
	if len(coords)-prev < 3 {
		return fmt.Errorf("%w: ring %d has %d vertices", ErrInvalidPolygon, len(holeStarts), len(coords)-prev)
	}
	for i, c := range coords {
		if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
			return fmt.Errorf("%w: vertex %d is not finite", ErrInvalidPolygon, i)
		}
	}
	return nil
}

// flatPolygon is a polygon laid out for Triangulate, with the geographic
// points kept alongside so triangle indices can be projected afterwards.
type flatPolygon struct {
	points     []GeoPoint
	coords     []r2.Point
	holeStarts []int
	ringStarts []int
}

// flattenPolygon drops closing duplicates and concatenates the rings of p.
// The 2D coordinates come from to.
func flattenPolygon(p Polygon, to func(GeoPoint) r2.Point) (*flatPolygon, error) {
	f := &flatPolygon{}
	for i, ring := range p {
		open := openRing(ring)
		if distinctPoints(open) < 3 {
			return nil, fmt.Errorf("%w: ring %d has fewer than 3 distinct points", ErrInvalidPolygon, i)
		}
		if i > 0 {
			f.holeStarts = append(f.holeStarts, len(f.points))
		}
		f.ringStarts = append(f.ringStarts, len(f.points))
		for _, pt := range open {
			f.points = append(f.points, pt)
			f.coords = append(f.coords, to(pt))
		}
	}
	return f, nil
}

// ring returns the index range of ring i.
func (f *flatPolygon) ring(i int) (start, end int) {
	start = f.ringStarts[i]
	end = len(f.points)
	if i+1 < len(f.ringStarts) {
		end = f.ringStarts[i+1]
	}
	return start, end
}

// isCCW reports whether ring i turns counter clockwise with y up.
func (f *flatPolygon) isCCW(i int) bool {
	start, end := f.ring(i)
	return signedArea(f.coords, start, end) > 0
}

func distinctPoints(r Ring) int {
	seen := make(map[GeoPoint]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}
