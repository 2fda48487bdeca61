package raster

// Mask is a single-channel coverage buffer used to accumulate one stroke
// before it touches the layer raster.
//
// All geometry of a stroke rasterizes into a mask with a maximum-wins
// rule, so overlapping stamps at translucent opacity never double-darken:
// one gesture reads as one coherent mark. The finished mask is then
// applied to the layer buffer in a single compositing step, and separate
// strokes accumulate normally against each other.
type Mask struct {
	cov    []byte
	width  int
	height int
}

// NewMask allocates a cleared coverage mask.
func NewMask(width, height int) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Mask{
		cov:    make([]byte, width*height),
		width:  width,
		height: height,
	}, nil
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// At returns the coverage at (x, y); out of bounds is zero.
func (m *Mask) At(x, y int) byte {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return 0
	}
	return m.cov[y*m.width+x]
}

// Accumulate raises the coverage at (x, y) to cov if it is higher than the
// stored value. Out-of-bounds writes are ignored.
func (m *Mask) Accumulate(x, y int, cov byte) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return
	}
	idx := y*m.width + x
	if cov > m.cov[idx] {
		m.cov[idx] = cov
	}
}

// Clear zeroes the mask for reuse.
func (m *Mask) Clear() {
	clear(m.cov)
}

// Empty reports whether no pixel has coverage.
func (m *Mask) Empty() bool {
	for _, c := range m.cov {
		if c != 0 {
			return false
		}
	}
	return true
}
