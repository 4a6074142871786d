package main

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/brawer/globemesh/mesh"
	"github.com/golang/geo/s2"
)

type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// MeshCollection is the response body of the mesh endpoint.
type MeshCollection struct {
	Type        string         `json:"type"`
	Mode        string         `json:"mode"`
	Radius      float64        `json:"radius"`
	Links       []*Link        `json:"links,omitempty"`
	BoundingBox []float64      `json:"bbox,omitempty"`
	Features    []*FeatureMesh `json:"features"`
	Failures    []*Failure     `json:"failures,omitempty"`
}

// FeatureMesh carries flat vertex buffers: positions and lines as x,y,z
// triples, indices as triangle triples into positions.
type FeatureMesh struct {
	ID          interface{}            `json:"id,omitempty"`
	Name        string                 `json:"name,omitempty"`
	BoundingBox []float64              `json:"bbox,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Positions   []float64              `json:"positions"`
	Indices     []uint32               `json:"indices"`
	Lines       []float64              `json:"lines,omitempty"`
}

type Failure struct {
	Index int         `json:"index"`
	ID    interface{} `json:"id,omitempty"`
	Kind  string      `json:"kind"`
	Error string      `json:"error"`
}

func newFeatureMesh(fm *mesh.FeatureMesh) *FeatureMesh {
	out := &FeatureMesh{
		ID:          fm.ID,
		Name:        fm.Name,
		BoundingBox: fm.Bounds.Slice(),
		Properties:  fm.Properties,
		Positions:   fm.Mesh.FlatPositions(),
		Indices:     fm.Mesh.Indices,
		Lines:       fm.Mesh.FlatLines(),
	}
	if out.Positions == nil {
		out.Positions = []float64{}
	}
	if out.Indices == nil {
		out.Indices = []uint32{}
	}
	return out
}

// MeshQuery is the parsed query string of a mesh request.
type MeshQuery struct {
	Options mesh.Options
	Bbox    s2.Rect
}

// parseMeshQuery applies mode, radius, samples, fill, extrude and bbox on
// top of defaults. Switching mode without giving radius or samples picks
// that mode's defaults for them.
func parseMeshQuery(q url.Values, defaults mesh.Options) (MeshQuery, error) {
	opts := defaults
	if s := q.Get("mode"); s != "" {
		mode, err := mesh.ParseMode(s)
		if err != nil {
			return MeshQuery{}, err
		}
		if mode != opts.Mode {
			d := mesh.DefaultOptions(mode)
			opts.Mode, opts.Radius, opts.SamplesPerUnitDistance = mode, d.Radius, d.SamplesPerUnitDistance
		}
	}

	var err error
	if opts.Radius, err = parsePositive(q, "radius", opts.Radius, false); err != nil {
		return MeshQuery{}, err
	}
	if opts.SamplesPerUnitDistance, err = parsePositive(q, "samples", opts.SamplesPerUnitDistance, true); err != nil {
		return MeshQuery{}, err
	}
	if opts.ExtrudeHeight, err = parsePositive(q, "extrude", opts.ExtrudeHeight, true); err != nil {
		return MeshQuery{}, err
	}
	if s := q.Get("fill"); s != "" {
		if opts.FillPolygons, err = strconv.ParseBool(s); err != nil {
			return MeshQuery{}, fmt.Errorf("bad fill parameter %q", s)
		}
	}
	if opts.Mode == mesh.Spherical {
		opts.ExtrudeHeight = 0
	} else {
		opts.SamplesPerUnitDistance = 0
	}
	opts.Projection = nil

	bbox, err := parseBbox(q.Get("bbox"))
	if err != nil {
		return MeshQuery{}, err
	}
	return MeshQuery{Options: opts, Bbox: bbox}, nil
}

func parsePositive(q url.Values, key string, def float64, zeroOK bool) (float64, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || (v == 0 && !zeroOK) {
		return 0, fmt.Errorf("bad %s parameter %q", key, s)
	}
	return v, nil
}

// FormatMeshURL returns the canonical URL of a mesh request. Leave item
// empty for the whole collection.
func FormatMeshURL(prefix, collection, item string, q MeshQuery) string {
	var buf strings.Builder
	buf.WriteString(prefix)
	buf.WriteString("collections/")
	buf.WriteString(url.PathEscape(collection))
	if item != "" {
		buf.WriteString("/items/")
		buf.WriteString(url.PathEscape(item))
	}
	buf.WriteString("/mesh?mode=")
	buf.WriteString(q.Options.Mode.String())
	fmt.Fprintf(&buf, "&radius=%g", q.Options.Radius)
	if q.Options.Mode == mesh.Spherical {
		fmt.Fprintf(&buf, "&samples=%g", q.Options.SamplesPerUnitDistance)
	}
	fmt.Fprintf(&buf, "&fill=%t", q.Options.FillPolygons)
	if q.Options.ExtrudeHeight > 0 {
		fmt.Fprintf(&buf, "&extrude=%g", q.Options.ExtrudeHeight)
	}
	if !q.Bbox.IsEmpty() && !q.Bbox.IsFull() {
		fmt.Fprintf(&buf, "&bbox=%.7f,%.7f,%.7f,%.7f",
			q.Bbox.Lo().Lng.Degrees(), q.Bbox.Lo().Lat.Degrees(),
			q.Bbox.Hi().Lng.Degrees(), q.Bbox.Hi().Lat.Degrees())
	}
	return buf.String()
}
