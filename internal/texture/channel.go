// Package texture manages brush stamp textures.
//
// A stamp texture is stored as a single coverage channel where white
// means full deposit and black means none. Brushes that combine a shape
// and a grain reference several channels and multiply their samples
// inside one rasterization step, so stamp count never depends on how
// many channels a brush uses.
package texture

import (
	"errors"
	"image"
	"io"

	"github.com/chewxy/math32"
	"github.com/disintegration/imaging"
)

var (
	// ErrEmptyImage means the decoded image had no pixels.
	ErrEmptyImage = errors.New("texture: empty image")
	// ErrUnknownChannel means the registry has no channel under the
	// requested id.
	ErrUnknownChannel = errors.New("texture: unknown channel")
)

// maxSide caps channel resolution. Stamps are small on screen, so
// anything larger only wastes sampling bandwidth.
const maxSide = 512

// Channel is one immutable coverage channel. Safe for concurrent reads.
type Channel struct {
	cov    []byte
	width  int
	height int
}

// FromImage converts an image into a coverage channel. Color images are
// reduced to luminance first, and oversized images are scaled down to
// maxSide with Lanczos resampling.
func FromImage(img image.Image) (*Channel, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	if b.Dx() > maxSide || b.Dy() > maxSide {
		w, h := b.Dx(), b.Dy()
		if w >= h {
			img = imaging.Resize(img, maxSide, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxSide, imaging.Lanczos)
		}
	}
	gray := imaging.Grayscale(img)

	gb := gray.Bounds()
	c := &Channel{
		cov:    make([]byte, gb.Dx()*gb.Dy()),
		width:  gb.Dx(),
		height: gb.Dy(),
	}
	for y := 0; y < c.height; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < c.width; x++ {
			// Grayscale output has equal R, G and B. Coverage is
			// luminance gated by alpha so transparent texels never
			// deposit.
			px := row[x*4:]
			c.cov[y*c.width+x] = mul8(px[0], px[3])
		}
	}
	return c, nil
}

// Decode reads an encoded image (PNG, JPEG, and the other formats
// imaging registers) and converts it to a channel.
func Decode(r io.Reader) (*Channel, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// Width returns the channel width in texels.
func (c *Channel) Width() int { return c.width }

// Height returns the channel height in texels.
func (c *Channel) Height() int { return c.height }

// Sample reads coverage at normalized coordinates with bilinear
// filtering. Coordinates outside [0, 1] clamp to the edge texel.
func (c *Channel) Sample(u, v float32) byte {
	fx := u*float32(c.width) - 0.5
	fy := v*float32(c.height) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	c00 := float32(c.texel(x0, y0))
	c10 := float32(c.texel(x0+1, y0))
	c01 := float32(c.texel(x0, y0+1))
	c11 := float32(c.texel(x0+1, y0+1))

	top := c00 + (c10-c00)*tx
	bot := c01 + (c11-c01)*tx
	return byte(top + (bot-top)*ty + 0.5)
}

func (c *Channel) texel(x, y int) byte {
	if x < 0 {
		x = 0
	} else if x >= c.width {
		x = c.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= c.height {
		y = c.height - 1
	}
	return c.cov[y*c.width+x]
}

func mul8(a, b byte) byte {
	t := uint32(a)*uint32(b) + 128
	return byte((t + t>>8) >> 8)
}
