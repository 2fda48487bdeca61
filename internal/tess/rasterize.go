package tess

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/easel/internal/raster"
)

// SampleFunc reads stamp texture coverage at normalized coordinates.
// u and v are in [0, 1] across the stamp footprint. A nil sampler falls
// back to a soft disc.
type SampleFunc func(u, v float32) byte

// RasterizeStamps accumulates stamp coverage into the mask. Each stamp
// contributes at most its own coverage per pixel; where stamps overlap
// the mask keeps the maximum, so a single gesture never darkens a pixel
// twice.
func RasterizeStamps(m *raster.Mask, stamps []Stamp, sample SampleFunc) {
	for _, s := range stamps {
		rasterizeStamp(m, s, sample)
	}
}

func rasterizeStamp(m *raster.Mask, s Stamp, sample SampleFunc) {
	radius := s.Size / 2
	if radius <= 0 || s.Opacity <= 0 {
		return
	}

	x0 := int(math32.Floor(s.X - radius))
	y0 := int(math32.Floor(s.Y - radius))
	x1 := int(math32.Ceil(s.X + radius))
	y1 := int(math32.Ceil(s.Y + radius))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= m.Width() {
		x1 = m.Width() - 1
	}
	if y1 >= m.Height() {
		y1 = m.Height() - 1
	}

	sin, cos := math32.Sincos(-s.Rotation)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			// Pixel center relative to the stamp center, rotated
			// into stamp-local space.
			dx := float32(x) + 0.5 - s.X
			dy := float32(y) + 0.5 - s.Y
			lx := dx*cos - dy*sin
			ly := dx*sin + dy*cos

			var cov float32
			if sample != nil {
				u := lx/s.Size + 0.5
				v := ly/s.Size + 0.5
				if u < 0 || u > 1 || v < 0 || v > 1 {
					continue
				}
				cov = float32(sample(u, v)) / 255
			} else {
				cov = discCoverage(math32.Hypot(lx, ly), radius)
			}
			cov *= s.Opacity
			if cov <= 0 {
				continue
			}
			m.Accumulate(x, y, byte(cov*255+0.5))
		}
	}
}

// discCoverage is the textureless fallback: full coverage inside the
// disc with a one pixel antialiased rim.
func discCoverage(dist, radius float32) float32 {
	c := radius - dist + 0.5
	if c <= 0 {
		return 0
	}
	if c >= 1 {
		return 1
	}
	return c
}

// RasterizeMesh fills ribbon triangles into the mask at full coverage.
// Edge pixels are covered when their center falls inside the triangle,
// the same rule used for stamp discs.
func RasterizeMesh(m *raster.Mask, mesh []Vertex) {
	for i := 0; i+2 < len(mesh); i += 3 {
		fillTriangle(m, mesh[i], mesh[i+1], mesh[i+2])
	}
}

func fillTriangle(m *raster.Mask, a, b, c Vertex) {
	x0 := int(math32.Floor(min3(a.X, b.X, c.X)))
	y0 := int(math32.Floor(min3(a.Y, b.Y, c.Y)))
	x1 := int(math32.Ceil(max3(a.X, b.X, c.X)))
	y1 := int(math32.Ceil(max3(a.Y, b.Y, c.Y)))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= m.Width() {
		x1 = m.Width() - 1
	}
	if y1 >= m.Height() {
		y1 = m.Height() - 1
	}

	// Signed area doubles as the orientation test denominator.
	area := edgeFn(a, b, c.X, c.Y)
	if area == 0 {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			px := float32(x) + 0.5
			py := float32(y) + 0.5
			w0 := edgeFn(b, c, px, py)
			w1 := edgeFn(c, a, px, py)
			w2 := edgeFn(a, b, px, py)
			if area > 0 {
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
			} else {
				if w0 > 0 || w1 > 0 || w2 > 0 {
					continue
				}
			}
			m.Accumulate(x, y, 255)
		}
	}
}

func edgeFn(a, b Vertex, px, py float32) float32 {
	return (b.X-a.X)*(py-a.Y) - (b.Y-a.Y)*(px-a.X)
}

func min3(a, b, c float32) float32 { return math32.Min(a, math32.Min(b, c)) }
func max3(a, b, c float32) float32 { return math32.Max(a, math32.Max(b, c)) }
