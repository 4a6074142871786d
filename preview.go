package main

import (
	"bytes"

	"github.com/brawer/globemesh/mesh"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Transparent 1x1 pixel PNG, 67 bytes
// http://garethrees.org/2007/11/14/pngcrush/
var emptyPNG []byte = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// Preview rasterizes planar meshes whose projection has been fitted to
// Width x Height with y pointing up.
type Preview struct {
	Width, Height int
	dc            *gg.Context
}

func (p *Preview) context() *gg.Context {
	if p.dc == nil {
		p.dc = gg.NewContext(p.Width, p.Height)
		p.dc.SetRGBA255(255, 255, 255, 0)
		p.dc.Clear()
	}
	return p.dc
}

// pixel maps a planar vertex (x, h, -y) to image coordinates.
func (p *Preview) pixel(v r3.Vector) r2.Point {
	return r2.Point{X: v.X, Y: float64(p.Height) + v.Z}
}

// DrawMesh fills the triangles of m, strokes its lines and, for meshes
// that have neither, draws each position as a dot.
func (p *Preview) DrawMesh(m *mesh.Mesh) {
	if m == nil || m.IsEmpty() {
		return
	}
	dc := p.context()

	dc.SetRGB255(66, 134, 244)
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a := p.pixel(m.Positions[m.Indices[i]])
		b := p.pixel(m.Positions[m.Indices[i+1]])
		c := p.pixel(m.Positions[m.Indices[i+2]])
		dc.MoveTo(a.X, a.Y)
		dc.LineTo(b.X, b.Y)
		dc.LineTo(c.X, c.Y)
		dc.ClosePath()
		dc.Fill()
	}

	if len(m.Lines) > 0 {
		dc.SetRGB255(195, 66, 244)
		dc.SetLineWidth(1.5)
		for i := 0; i+1 < len(m.Lines); i += 2 {
			a, b := p.pixel(m.Lines[i]), p.pixel(m.Lines[i+1])
			dc.DrawLine(a.X, a.Y, b.X, b.Y)
		}
		dc.Stroke()
	}

	if len(m.Indices) == 0 {
		dc.SetRGB255(195, 66, 244)
		for _, v := range m.Positions {
			q := p.pixel(v)
			dc.DrawCircle(q.X, q.Y, 2)
		}
		dc.Fill()
	}
}

// ToPNG encodes the preview, or returns a transparent pixel if nothing was
// drawn.
func (p *Preview) ToPNG() ([]byte, error) {
	if p.dc == nil {
		return emptyPNG, nil
	}
	var png bytes.Buffer
	if err := p.dc.EncodePNG(&png); err != nil {
		return nil, err
	}
	return png.Bytes(), nil
}
