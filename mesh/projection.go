package mesh

import (
	"math"

	"github.com/golang/geo/r2"
)

// Projection is a flat cartographic projection. Every implementation in
// this package returns y growing northwards.
type Projection interface {
	Project(lon, lat float64) r2.Point
}

// Equirectangular scales longitude and latitude linearly so that the world
// spans [-Radius, Radius] on both axes.
type Equirectangular struct {
	Radius float64
}

func (e Equirectangular) Project(lon, lat float64) r2.Point {
	return r2.Point{X: lon / 180 * e.Radius, Y: lat / 90 * e.Radius}
}

// WebMercator is EPSG:3857 on a 256 unit world square with the origin at
// the south-west corner.
type WebMercator struct{}

func (WebMercator) Project(lon, lat float64) r2.Point {
	siny := math.Sin(lat * math.Pi / 180.0)
	siny = math.Min(math.Max(siny, -0.9999), 0.9999)
	x := 256 * (0.5 + lon/360.0)
	y := 256 * (0.5 + math.Log((1+siny)/(1-siny))/(4*math.Pi))
	return r2.Point{X: x, Y: y}
}

// Orthographic views the unit globe from infinitely far above
// (Lon0, Lat0). Points on the far hemisphere are not clipped.
type Orthographic struct {
	Lon0 float64
	Lat0 float64
}

func (o Orthographic) Project(lon, lat float64) r2.Point {
	lambda := (lon - o.Lon0) * math.Pi / 180
	phi := lat * math.Pi / 180
	phi0 := o.Lat0 * math.Pi / 180
	return r2.Point{
		X: math.Cos(phi) * math.Sin(lambda),
		Y: math.Cos(phi0)*math.Sin(phi) - math.Sin(phi0)*math.Cos(phi)*math.Cos(lambda),
	}
}

// fitted applies a uniform scale and an offset after an inner projection.
type fitted struct {
	inner  Projection
	scale  float64
	offset r2.Point
}

func (f fitted) Project(lon, lat float64) r2.Point {
	return f.inner.Project(lon, lat).Mul(f.scale).Add(f.offset)
}

// fitSamples is the number of grid steps per axis used to estimate the
// projected extent of a bounding box.
const fitSamples = 16

// FitSize returns p followed by the uniform scale and offset that make box
// fill a width x height area with origin (0, 0), centred along the shorter
// axis.
func FitSize(p Projection, width, height float64, box BoundingBox) Projection {
	if box.IsEmpty() {
		return fitted{inner: p, scale: 1}
	}
	r := r2.EmptyRect()
	for i := 0; i <= fitSamples; i++ {
		lon := box.MinLon + (box.MaxLon-box.MinLon)*float64(i)/fitSamples
		for j := 0; j <= fitSamples; j++ {
			lat := box.MinLat + (box.MaxLat-box.MinLat)*float64(j)/fitSamples
			r = r.AddPoint(p.Project(lon, lat))
		}
	}

	size := r.Size()
	scale := 1.0
	switch {
	case size.X > 0 && size.Y > 0:
		scale = math.Min(width/size.X, height/size.Y)
	case size.X > 0:
		scale = width / size.X
	case size.Y > 0:
		scale = height / size.Y
	}

	center := r.Center().Mul(scale)
	offset := r2.Point{X: width/2 - center.X, Y: height/2 - center.Y}
	return fitted{inner: p, scale: scale, offset: offset}
}
