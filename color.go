package easel

// RGBA is a straight (non-premultiplied) color with float32 components
// in [0, 1]. It is the color space of brushes and solid-color layers;
// raster buffers store premultiplied 8-bit pixels.
type RGBA struct {
	R, G, B, A float32
}

// RGB returns an opaque color from RGB components in [0, 1].
func RGB(r, g, b float32) RGBA {
	return RGBA{R: r, G: g, B: b, A: 1}
}

// Clamped returns the color with every component clamped to [0, 1].
func (c RGBA) Clamped() RGBA {
	return RGBA{
		R: clamp01(c.R),
		G: clamp01(c.G),
		B: clamp01(c.B),
		A: clamp01(c.A),
	}
}

// Premul8 returns the color as premultiplied 8-bit channels.
func (c RGBA) Premul8() (r, g, b, a byte) {
	cc := c.Clamped()
	a = byte(cc.A*255 + 0.5)
	r = byte(cc.R*cc.A*255 + 0.5)
	g = byte(cc.G*cc.A*255 + 0.5)
	b = byte(cc.B*cc.A*255 + 0.5)
	return r, g, b, a
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
