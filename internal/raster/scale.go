package raster

import (
	"image"

	"golang.org/x/image/draw"
)

// Resample scales src into dst, whatever their sizes. A degraded GPU
// allocation runs below full resolution, so its layer content passes
// through a reduced buffer and back: everything stays visible, just
// softer.
func Resample(dst, src *Buffer) {
	if dst.Width() == src.Width() && dst.Height() == src.Height() {
		dst.CopyFrom(src) //nolint:errcheck // sizes match
		return
	}
	draw.ApproxBiLinear.Scale(dst.RGBA(),
		image.Rect(0, 0, dst.Width(), dst.Height()),
		src.RGBA(), src.RGBA().Bounds(), draw.Src, nil)
}
