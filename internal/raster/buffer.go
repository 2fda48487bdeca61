// Package raster owns the per-layer accumulation buffers of the paint
// core.
//
// Buffers store premultiplied RGBA8 pixels, matching image.RGBA and the
// GPU texture format, so uploads and scaling need no conversion. The
// store enforces the single-writer rule: at most one writer may mutate a
// layer's buffer at a time, and a second acquisition is a programming
// defect, not a recoverable condition.
package raster

import (
	"errors"
	"image"
)

// Buffer and store errors.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("raster: invalid dimensions")

	// ErrBufferBusy is returned when a second writer tries to acquire a
	// layer buffer. Two writers on one buffer is an invariant violation.
	ErrBufferBusy = errors.New("raster: buffer already has a writer")

	// ErrUnknownBuffer is returned when an id has no buffer in the store.
	ErrUnknownBuffer = errors.New("raster: unknown buffer id")

	// ErrSizeMismatch is returned when compositing buffers of unequal size.
	ErrSizeMismatch = errors.New("raster: buffer sizes do not match")
)

// Buffer is a premultiplied RGBA8 pixel buffer.
//
// Thread safety: safe for concurrent reads. Writes require external
// synchronization; layer buffers get it from the store's writer guard.
type Buffer struct {
	data   []byte
	width  int
	height int
	stride int
}

// NewBuffer allocates a cleared buffer.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	stride := width * 4
	return &Buffer{
		data:   make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
	}, nil
}

// Width returns the width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Buffer) Height() int { return b.height }

// Stride returns the bytes per row.
func (b *Buffer) Stride() int { return b.stride }

// Data returns the raw premultiplied pixel bytes.
func (b *Buffer) Data() []byte { return b.data }

// PixelOffset returns the byte offset of pixel (x, y), or -1 when out of
// bounds.
func (b *Buffer) PixelOffset(x, y int) int {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return -1
	}
	return y*b.stride + x*4
}

// Pixel returns the premultiplied channels at (x, y). Out-of-bounds reads
// return transparent black.
func (b *Buffer) Pixel(x, y int) (r, g, bl, a byte) {
	off := b.PixelOffset(x, y)
	if off < 0 {
		return 0, 0, 0, 0
	}
	return b.data[off], b.data[off+1], b.data[off+2], b.data[off+3]
}

// SetPixel writes premultiplied channels at (x, y). Out-of-bounds writes
// are ignored.
func (b *Buffer) SetPixel(x, y int, r, g, bl, a byte) {
	off := b.PixelOffset(x, y)
	if off < 0 {
		return
	}
	b.data[off] = r
	b.data[off+1] = g
	b.data[off+2] = bl
	b.data[off+3] = a
}

// Clear zeroes every pixel.
func (b *Buffer) Clear() {
	clear(b.data)
}

// Fill sets every pixel to the given premultiplied color.
func (b *Buffer) Fill(r, g, bl, a byte) {
	for y := 0; y < b.height; y++ {
		row := b.data[y*b.stride : y*b.stride+b.width*4]
		for x := 0; x < len(row); x += 4 {
			row[x] = r
			row[x+1] = g
			row[x+2] = bl
			row[x+3] = a
		}
	}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &Buffer{data: data, width: b.width, height: b.height, stride: b.stride}
}

// CopyFrom overwrites this buffer with src's pixels. Sizes must match.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.width != b.width || src.height != b.height {
		return ErrSizeMismatch
	}
	copy(b.data, src.data)
	return nil
}

// RGBA wraps the buffer as an *image.RGBA sharing the same pixel memory.
// image.RGBA is premultiplied, so no conversion happens; mutations through
// either view are visible in both.
func (b *Buffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.data,
		Stride: b.stride,
		Rect:   image.Rect(0, 0, b.width, b.height),
	}
}
