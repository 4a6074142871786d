package mesh

import "math"

// NormalizeLon wraps lon into [-180, 180).
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	l := math.Mod(lon+180, 360)
	if l < 0 {
		l += 360
	}
	l -= 180
	if l >= 180 {
		l -= 360
	}
	return l
}

// NormalizeRing returns a copy of r with every longitude normalized.
func NormalizeRing(r Ring) Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[i] = GeoPoint{Lon: NormalizeLon(p.Lon), Lat: p.Lat}
	}
	return out
}

func crosses(a, b GeoPoint) bool {
	return math.Abs(b.Lon-a.Lon) > 180
}

// CrossesSeam reports whether two consecutive points of r, including the
// implicit closing edge, are more than 180 degrees of longitude apart.
//
// This is a heuristic: an edge that genuinely spans more than half the
// globe looks exactly like a seam crossing.
func CrossesSeam(r Ring) bool {
	n := len(r)
	if n < 2 {
		return false
	}
	for i := 0; i+1 < n; i++ {
		if crosses(r[i], r[i+1]) {
			return true
		}
	}
	return crosses(r[n-1], r[0])
}

// SplitRing partitions the points of r by the sign of their longitude.
// Nothing is inserted at the seam and neither part is closed, so a ring
// with a single crossing yields two open polylines.
func SplitRing(r Ring) (west, east []GeoPoint) {
	for _, p := range r {
		if p.Lon < 0 {
			west = append(west, p)
		} else {
			east = append(east, p)
		}
	}
	return west, east
}

// seamCrossing returns where the edge a-b meets the antimeridian, once on
// the side of a (exit) and once on the side of b (entry). The latitude is
// interpolated linearly in longitude/latitude space, which is the space the
// pieces get triangulated in.
func seamCrossing(a, b GeoPoint) (exit, entry GeoPoint) {
	side, blon := 180.0, b.Lon+360
	if a.Lon < 0 {
		side, blon = -180, b.Lon-360
	}
	t := 0.0
	if d := blon - a.Lon; d != 0 {
		t = (side - a.Lon) / d
	}
	lat := a.Lat + t*(b.Lat-a.Lat)
	return GeoPoint{Lon: side, Lat: lat}, GeoPoint{Lon: -side, Lat: lat}
}

// CutRing cuts r at every seam crossing and closes the pieces along the
// seam. A ring that crosses an odd number of times winds around a pole; its
// piece is closed along that pole instead. Pieces with fewer than three
// distinct points are dropped. A ring that does not cross comes back as a
// single closed copy.
func CutRing(r Ring) []Ring {
	pts := openRing(r)
	n := len(pts)
	if n < 2 || !CrossesSeam(pts) {
		return []Ring{closeRing(pts)}
	}

	first := 0
	for ; first < n; first++ {
		if crosses(pts[first], pts[(first+1)%n]) {
			break
		}
	}

	firstExit, entry := seamCrossing(pts[first], pts[(first+1)%n])
	var pieces []Ring
	cur := appendDistinct(Ring{entry}, pts[(first+1)%n])
	for k := 1; k < n; k++ {
		a, b := pts[(first+k)%n], pts[(first+k+1)%n]
		if crosses(a, b) {
			exit, entry := seamCrossing(a, b)
			pieces = append(pieces, appendDistinct(cur, exit))
			cur = Ring{entry}
		}
		cur = appendDistinct(cur, b)
	}
	pieces = append(pieces, appendDistinct(cur, firstExit))

	pole := 90.0
	if meanLat(pts) < 0 {
		pole = -90
	}

	out := make([]Ring, 0, len(pieces))
	for _, p := range pieces {
		start, end := p[0], p[len(p)-1]
		if (start.Lon < 0) != (end.Lon < 0) {
			p = appendDistinct(p, GeoPoint{Lon: end.Lon, Lat: pole})
			p = appendDistinct(p, GeoPoint{Lon: 0, Lat: pole})
			p = appendDistinct(p, GeoPoint{Lon: start.Lon, Lat: pole})
		}
		p = closeRing(p)
		if len(p) < 4 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SplitPolygon returns seam-free polygons covering p.
//
// A polygon whose outer ring does not cross the seam comes back whole,
// minus any hole that does cross. Otherwise the outer ring is cut into
// pieces and every hole that does not cross is attached to the piece that
// contains it. Crossing holes are not carried across a split.
func SplitPolygon(p Polygon) []Polygon {
	if len(p) == 0 {
		return nil
	}

	if !CrossesSeam(p[0]) {
		out := Polygon{p[0]}
		for i, h := range p[1:] {
			if CrossesSeam(h) {
				Logger().Debug("dropping seam-crossing hole", "hole", i+1)
				continue
			}
			out = append(out, h)
		}
		return []Polygon{out}
	}

	pieces := CutRing(p[0])
	out := make([]Polygon, len(pieces))
	for i, piece := range pieces {
		out[i] = Polygon{piece}
	}
	for i, h := range p[1:] {
		if len(h) == 0 || CrossesSeam(h) {
			Logger().Debug("dropping hole of a split polygon", "hole", i+1)
			continue
		}
		if k := pieceFor(pieces, h[0]); k >= 0 {
			out[k] = append(out[k], h)
		}
	}
	return out
}

// pieceFor picks the piece whose bounds contain p, or else the first piece
// on the same side of the seam.
func pieceFor(pieces []Ring, p GeoPoint) int {
	fallback := -1
	for i, piece := range pieces {
		b := ringBounds(piece)
		if p.Lon >= b.MinLon && p.Lon <= b.MaxLon && p.Lat >= b.MinLat && p.Lat <= b.MaxLat {
			return i
		}
		if fallback < 0 && (p.Lon < 0) == (b.MinLon+b.MaxLon < 0) {
			fallback = i
		}
	}
	return fallback
}

// openRing returns r without its closing duplicate, if any.
func openRing(r Ring) Ring {
	if n := len(r); n > 1 && r[0] == r[n-1] {
		return r[:n-1]
	}
	return r
}

// closeRing returns a copy of r that ends with its first point.
func closeRing(r Ring) Ring {
	out := make(Ring, len(r), len(r)+1)
	copy(out, r)
	if len(out) > 0 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

func appendDistinct(r Ring, p GeoPoint) Ring {
	if n := len(r); n > 0 && r[n-1] == p {
		return r
	}
	return append(r, p)
}

func meanLat(r Ring) float64 {
	if len(r) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range r {
		sum += p.Lat
	}
	return sum / float64(len(r))
}
