package mesh

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/paulmach/go.geojson"
)

const (
	DefaultSphereRadius = 1.0
	DefaultPlaneRadius  = 5.0

	// DefaultSamplesPerUnitDistance inserts a point roughly every five
	// degrees of arc.
	DefaultSamplesPerUnitDistance = 12.0
)

// Options controls a conversion.
type Options struct {
	Mode Mode

	// Radius of the sphere, or half the width of the equirectangular
	// plane. Zero or negative means the default for Mode.
	Radius float64

	// ExtrudeHeight turns planar polygons into prisms of this height.
	// Ignored in spherical mode.
	ExtrudeHeight float64

	// SamplesPerUnitDistance is the great-circle densification rate in
	// samples per radian. Only used in spherical mode; zero disables it.
	SamplesPerUnitDistance float64

	// FillPolygons triangulates polygons. Without it polygons come out as
	// ring outlines in the line buffer.
	FillPolygons bool

	// Projection used in planar mode. Nil means Equirectangular{Radius}.
	Projection Projection
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions(mode Mode) Options {
	opts := Options{
		Mode:         mode,
		Radius:       DefaultSphereRadius,
		FillPolygons: true,
	}
	if mode == Planar {
		opts.Radius = DefaultPlaneRadius
	} else {
		opts.SamplesPerUnitDistance = DefaultSamplesPerUnitDistance
	}
	return opts
}

// Builder converts GeoJSON geometry into meshes. A Builder holds only its
// options, so one instance may be shared by any number of goroutines.
type Builder struct {
	opts Options
	proj Projector
	to2D func(GeoPoint) r2.Point
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts Options) *Builder {
	if !(opts.Radius > 0) {
		opts.Radius = DefaultOptions(opts.Mode).Radius
	}
	b := &Builder{opts: opts}
	switch opts.Mode {
	case Planar:
		if opts.Projection == nil {
			opts.Projection = Equirectangular{Radius: opts.Radius}
			b.opts.Projection = opts.Projection
		}
		b.proj = Plane{Projection: opts.Projection}
		b.to2D = func(p GeoPoint) r2.Point { return opts.Projection.Project(p.Lon, p.Lat) }
	default:
		b.opts.Mode = Spherical
		b.proj = Sphere{Radius: opts.Radius}
		b.to2D = func(p GeoPoint) r2.Point { return r2.Point{X: p.Lon, Y: p.Lat} }
	}
	return b
}

// Options returns the effective options, defaults filled in.
func (b *Builder) Options() Options {
	return b.opts
}

func (b *Builder) densify() bool {
	return b.opts.Mode == Spherical && b.opts.SamplesPerUnitDistance > 0
}

// Geometry converts a single geometry. The result has passed Validate.
func (b *Builder) Geometry(g *geojson.Geometry) (*Mesh, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", ErrUnsupportedGeometry)
	}
	m, err := b.geometry(g)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Builder) geometry(g *geojson.Geometry) (*Mesh, error) {
	switch g.Type {
	case geojson.GeometryPoint:
		return b.points([][]float64{g.Point})

	case geojson.GeometryMultiPoint:
		return b.points(g.MultiPoint)

	case geojson.GeometryLineString:
		return b.line(g.LineString)

	case geojson.GeometryMultiLineString:
		parts := make([]*Mesh, 0, len(g.MultiLineString))
		for i, line := range g.MultiLineString {
			m, err := b.line(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
			parts = append(parts, m)
		}
		return Merge(parts...)

	case geojson.GeometryPolygon:
		return b.polygon(g.Polygon)

	case geojson.GeometryMultiPolygon:
		parts := make([]*Mesh, 0, len(g.MultiPolygon))
		for i, poly := range g.MultiPolygon {
			m, err := b.polygon(poly)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			parts = append(parts, m)
		}
		return Merge(parts...)

	case geojson.GeometryCollection:
		parts := make([]*Mesh, 0, len(g.Geometries))
		for i, member := range g.Geometries {
			if member == nil {
				return nil, fmt.Errorf("geometry %d: %w: nil geometry", i, ErrUnsupportedGeometry)
			}
			m, err := b.geometry(member)
			if err != nil {
				return nil, fmt.Errorf("geometry %d: %w", i, err)
			}
			parts = append(parts, m)
		}
		return Merge(parts...)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.Type)
	}
}

func (b *Builder) points(coords [][]float64) (*Mesh, error) {
	m := &Mesh{Positions: make([]r3.Vector, 0, len(coords))}
	for i, c := range coords {
		p, err := toGeoPoint(c)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		v, err := b.proj.Project(p)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		m.Positions = append(m.Positions, v)
	}
	return m, nil
}

// line emits one segment per consecutive pair. On the sphere edges follow
// great circles; on the plane an edge crossing the seam is cut in two.
func (b *Builder) line(coords [][]float64) (*Mesh, error) {
	pts, err := toRing(coords)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("%w: line with %d points", ErrInvalidCoordinate, len(pts))
	}
	return b.segments(pts)
}

func (b *Builder) segments(pts Ring) (*Mesh, error) {
	if b.densify() {
		pts = DensifyPath(pts, b.opts.SamplesPerUnitDistance)
	}
	m := &Mesh{Lines: make([]r3.Vector, 0, 2*(len(pts)-1))}
	emit := func(p, q GeoPoint) error {
		vp, err := b.proj.Project(p)
		if err != nil {
			return err
		}
		vq, err := b.proj.Project(q)
		if err != nil {
			return err
		}
		m.Lines = append(m.Lines, vp, vq)
		return nil
	}
	for i := 0; i+1 < len(pts); i++ {
		p, q := pts[i], pts[i+1]
		if b.opts.Mode == Planar && crosses(p, q) {
			exit, entry := seamCrossing(p, q)
			if err := emit(p, exit); err != nil {
				return nil, err
			}
			if err := emit(entry, q); err != nil {
				return nil, err
			}
			continue
		}
		if err := emit(p, q); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (b *Builder) polygon(rings [][][]float64) (*Mesh, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("%w: polygon without rings", ErrInvalidPolygon)
	}
	poly := make(Polygon, len(rings))
	for i, coords := range rings {
		r, err := toRing(coords)
		if err != nil {
			return nil, fmt.Errorf("ring %d: %w", i, err)
		}
		if distinctPoints(openRing(r)) < 3 {
			return nil, fmt.Errorf("%w: ring %d has fewer than 3 distinct points", ErrInvalidPolygon, i)
		}
		poly[i] = closeRing(r)
	}

	if !b.opts.FillPolygons {
		parts := make([]*Mesh, 0, len(poly))
		for i, r := range poly {
			m, err := b.segments(r)
			if err != nil {
				return nil, fmt.Errorf("ring %d: %w", i, err)
			}
			parts = append(parts, m)
		}
		return Merge(parts...)
	}

	if b.densify() {
		for i, r := range poly {
			poly[i] = DensifyRing(r, b.opts.SamplesPerUnitDistance)
		}
	}

	pieces := SplitPolygon(poly)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: nothing left after cutting at the antimeridian", ErrInvalidPolygon)
	}
	parts := make([]*Mesh, 0, len(pieces))
	for i, piece := range pieces {
		m, err := b.fill(piece)
		if err != nil {
			return nil, fmt.Errorf("piece %d: %w", i, err)
		}
		parts = append(parts, m)
	}
	return Merge(parts...)
}

// fill triangulates a seam-free polygon in 2D and projects its vertices.
func (b *Builder) fill(p Polygon) (*Mesh, error) {
	fp, err := flattenPolygon(p, b.to2D)
	if err != nil {
		return nil, err
	}
	tris, err := Triangulate(fp.coords, fp.holeStarts)
	if err != nil {
		return nil, err
	}

	m := &Mesh{
		Positions: make([]r3.Vector, len(fp.points)),
		Indices:   make([]uint32, 0, 3*len(tris)),
	}
	for i, pt := range fp.points {
		v, err := b.proj.Project(pt)
		if err != nil {
			return nil, err
		}
		m.Positions[i] = v
	}
	for _, t := range tris {
		m.Indices = append(m.Indices, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}

	if b.opts.Mode == Planar && b.opts.ExtrudeHeight > 0 {
		return extrude(m, fp, b.opts.ExtrudeHeight), nil
	}
	return m, nil
}

// extrude turns a flat base into a closed prism: the original cap facing
// down, a copy at height h facing up and a wall for every ring edge.
func extrude(base *Mesh, fp *flatPolygon, h float64) *Mesh {
	n := uint32(len(base.Positions))
	m := &Mesh{
		Positions: make([]r3.Vector, 0, 2*n),
		Indices:   make([]uint32, 0, 2*len(base.Indices)+6*int(n)),
	}
	m.Positions = append(m.Positions, base.Positions...)
	for _, v := range base.Positions {
		m.Positions = append(m.Positions, r3.Vector{X: v.X, Y: v.Y + h, Z: v.Z})
	}

	for i := 0; i+2 < len(base.Indices); i += 3 {
		a, b, c := base.Indices[i], base.Indices[i+1], base.Indices[i+2]
		m.Indices = append(m.Indices, a, c, b)
		m.Indices = append(m.Indices, a+n, b+n, c+n)
	}

	for r := range fp.ringStarts {
		start, end := fp.ring(r)
		// Outer rings must run counter clockwise and holes clockwise for
		// the walls to face outwards.
		flip := fp.isCCW(r) != (r == 0)
		for k := start; k < end; k++ {
			i, j := uint32(k), uint32(k+1)
			if k+1 == end {
				j = uint32(start)
			}
			if flip {
				i, j = j, i
			}
			m.Indices = append(m.Indices, i, j, j+n, i, j+n, i+n)
		}
	}
	return m
}

func toGeoPoint(c []float64) (GeoPoint, error) {
	if len(c) < 2 {
		return GeoPoint{}, fmt.Errorf("%w: position with %d values", ErrInvalidCoordinate, len(c))
	}
	p := GeoPoint{Lon: NormalizeLon(c[0]), Lat: c[1]}
	if err := checkCoordinate(p); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// toRing converts GeoJSON positions into checked points with normalized
// longitudes.
func toRing(coords [][]float64) (Ring, error) {
	r := make(Ring, len(coords))
	for i, c := range coords {
		p, err := toGeoPoint(c)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		r[i] = p
	}
	return r, nil
}
