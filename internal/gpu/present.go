package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
)

// ErrNoTextureCreator means the draw context cannot create textures.
var ErrNoTextureCreator = errors.New("gpu: draw context has no texture creator")

// textureDestroyer is implemented by textures that need explicit
// release.
type textureDestroyer interface{ Destroy() }

// Presenter uploads composited frames and draws them into a windowing
// context. The frame pixels are premultiplied RGBA8, the same layout
// the compositor produces, so upload is a straight copy.
//
// Presenter is not safe for concurrent use; present from one goroutine.
type Presenter struct {
	tex    gpucontext.Texture
	oldTex gpucontext.Texture
	width  int
	height int
}

// NewPresenter returns an empty presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Present uploads the frame and draws it at the given position.
//
// The previous frame's texture is destroyed only after the new upload
// completes, when the GPU is known to be idle.
func (p *Presenter) Present(dc gpucontext.TextureDrawer, frame *image.RGBA, x, y float32) error {
	creator := dc.TextureCreator()
	if creator == nil {
		return ErrNoTextureCreator
	}

	w := frame.Bounds().Dx()
	h := frame.Bounds().Dy()
	tex, err := creator.NewTextureFromRGBA(w, h, frame.Pix)
	if err != nil {
		return fmt.Errorf("gpu: frame upload failed: %w", err)
	}
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}

	p.oldTex = p.tex
	p.tex = tex
	p.width = w
	p.height = h

	if p.oldTex != nil {
		if d, ok := p.oldTex.(textureDestroyer); ok {
			d.Destroy()
		}
		p.oldTex = nil
	}
	return dc.DrawTexture(tex, x, y)
}

// Close releases the presenter's texture.
func (p *Presenter) Close() {
	if p.tex != nil {
		if d, ok := p.tex.(textureDestroyer); ok {
			d.Destroy()
		}
		p.tex = nil
	}
}
