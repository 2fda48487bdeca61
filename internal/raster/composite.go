package raster

import (
	"github.com/gogpu/easel/internal/blend"
)

// Op is the compositing operation tagged on stroke geometry.
type Op uint8

const (
	// OpSourceOver paints the stroke onto the layer.
	OpSourceOver Op = iota
	// OpDestinationOut erases the layer where the stroke covers it.
	OpDestinationOut
)

// ApplyMask composites a finished stroke mask onto the layer buffer.
//
// For OpSourceOver the mask is colored with the stroke's premultiplied
// color; for OpDestinationOut the coverage acts as erase strength and the
// color is ignored. This is the only way stroke geometry reaches a layer
// raster, which keeps erasers exactly as cheap as paint strokes.
func ApplyMask(dst *Buffer, m *Mask, r, g, b, a byte, op Op) error {
	if m.width != dst.width || m.height != dst.height {
		return ErrSizeMismatch
	}
	for y := 0; y < dst.height; y++ {
		row := dst.data[y*dst.stride:]
		covRow := m.cov[y*m.width : (y+1)*m.width]
		for x, cov := range covRow {
			if cov == 0 {
				continue
			}
			off := x * 4
			dr, dg, db, da := row[off], row[off+1], row[off+2], row[off+3]

			// Scale the stroke color by coverage; both are premultiplied.
			sr := blend.MulDiv255Exact(r, cov)
			sg := blend.MulDiv255Exact(g, cov)
			sb := blend.MulDiv255Exact(b, cov)
			sa := blend.MulDiv255Exact(a, cov)

			var nr, ng, nb, na byte
			if op == OpDestinationOut {
				nr, ng, nb, na = blend.DestinationOut(0, 0, 0, cov, dr, dg, db, da)
			} else {
				nr, ng, nb, na = blend.SourceOver(sr, sg, sb, sa, dr, dg, db, da)
			}
			row[off], row[off+1], row[off+2], row[off+3] = nr, ng, nb, na
		}
	}
	return nil
}

// Composite blends src onto dst with the given mode and source opacity.
// Opacity scales the premultiplied source before the operator, which is
// also how fused passes apply per-layer opacity; keeping the two paths
// identical is what makes plan evaluation value-equivalent to sequential
// compositing.
func Composite(dst, src *Buffer, mode blend.Mode, opacity float32) error {
	if src.width != dst.width || src.height != dst.height {
		return ErrSizeMismatch
	}
	f := blend.PixelFunc(mode)
	scale := opacityByte(opacity)

	for y := 0; y < dst.height; y++ {
		drow := dst.data[y*dst.stride:]
		srow := src.data[y*src.stride:]
		for x := 0; x < dst.width; x++ {
			off := x * 4
			sr, sg, sb, sa := srow[off], srow[off+1], srow[off+2], srow[off+3]
			if scale < 255 {
				sr = blend.MulDiv255Exact(sr, scale)
				sg = blend.MulDiv255Exact(sg, scale)
				sb = blend.MulDiv255Exact(sb, scale)
				sa = blend.MulDiv255Exact(sa, scale)
			}
			dr, dg, db, da := drow[off], drow[off+1], drow[off+2], drow[off+3]
			nr, ng, nb, na := f(sr, sg, sb, sa, dr, dg, db, da)
			drow[off], drow[off+1], drow[off+2], drow[off+3] = nr, ng, nb, na
		}
	}
	return nil
}

// opacityByte converts a [0, 1] opacity to a byte scale factor.
func opacityByte(opacity float32) byte {
	if opacity <= 0 {
		return 0
	}
	if opacity >= 1 {
		return 255
	}
	return byte(opacity*255 + 0.5)
}
