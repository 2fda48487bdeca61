package easel

import (
	"errors"

	"github.com/google/uuid"
)

// Layer and document errors.
var (
	// ErrUnknownLayer is returned when an operation targets a layer id
	// that is not part of the document.
	ErrUnknownLayer = errors.New("easel: unknown layer id")

	// ErrUnknownStroke is returned when undo/redo targets a stroke id the
	// layer does not hold.
	ErrUnknownStroke = errors.New("easel: unknown stroke id")
)

// BlendMode is the pixel-combination function used when compositing one
// layer onto the stack below it.
//
// Each mode carries its algebraic classification under layer stacking,
// verified mode-by-mode against the premultiplied pixel math in
// internal/blend (see TestModeAlgebra there). Only modes that are both
// associative and commutative may be fused into a single compositing pass.
type BlendMode uint8

const (
	// BlendNormal is source-over alpha compositing, the default. Order
	// and destination alpha matter, so it is neither associative nor
	// commutative under stacking.
	BlendNormal BlendMode = iota

	// BlendMultiply multiplies premultiplied channels. Associative and
	// commutative.
	BlendMultiply

	// BlendScreen is the complement-multiply: s + d - s*d. Associative
	// and commutative.
	BlendScreen

	// BlendPlus is saturating addition. Associative and commutative.
	BlendPlus

	// BlendDarken keeps the channel minimum. Associative and commutative.
	BlendDarken

	// BlendLighten keeps the channel maximum. Associative and commutative.
	BlendLighten

	// BlendDifference is |d - s|. Commutative but not associative, so it
	// never fuses.
	BlendDifference

	// BlendExclusion is s + d - 2*s*d. Commutative but not associative.
	BlendExclusion
)

// String returns the mode name.
func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "Normal"
	case BlendMultiply:
		return "Multiply"
	case BlendScreen:
		return "Screen"
	case BlendPlus:
		return "Plus"
	case BlendDarken:
		return "Darken"
	case BlendLighten:
		return "Lighten"
	case BlendDifference:
		return "Difference"
	case BlendExclusion:
		return "Exclusion"
	default:
		return "Unknown"
	}
}

// Associative reports whether the mode is associative under layer
// stacking.
func (m BlendMode) Associative() bool {
	switch m {
	case BlendMultiply, BlendScreen, BlendPlus, BlendDarken, BlendLighten:
		return true
	default:
		return false
	}
}

// Commutative reports whether the mode is commutative under layer
// stacking.
func (m BlendMode) Commutative() bool {
	switch m {
	case BlendMultiply, BlendScreen, BlendPlus, BlendDarken, BlendLighten,
		BlendDifference, BlendExclusion:
		return true
	default:
		return false
	}
}

// Fusable reports whether adjacent layers with this mode may be combined
// into one compositing pass without changing the result.
func (m BlendMode) Fusable() bool {
	return m.Associative() && m.Commutative()
}

// Layer is one entry of the document stack. It exclusively owns its raster
// accumulation buffer (held in the raster store, keyed by the layer id);
// the buffer's content is always re-derivable by replaying the layer's
// active strokes through the tessellator.
//
// Committed strokes are never deleted. Undo clears a stroke's active flag
// and regenerates the raster by replay, so repeated undo/redo cannot
// accumulate floating-point drift.
type Layer struct {
	// ID keys the layer's raster buffer and identifies it to collaborators.
	ID uuid.UUID

	// Name is a display name owned by the UI collaborator.
	Name string

	// Mode is the layer's blend mode within the stack.
	Mode BlendMode

	// Opacity in [0, 1]; 0 elides the layer from compositing.
	Opacity float32

	// Visible elides the layer from compositing when false.
	Visible bool

	// Fill, when non-nil, makes this a solid-color layer: its raster is
	// the constant color and it holds no strokes.
	Fill *RGBA

	strokes []*Stroke
	active  []bool
}

// NewLayer creates an empty, visible stroke layer with normal blending.
func NewLayer(name string) *Layer {
	return &Layer{
		ID:      uuid.New(),
		Name:    name,
		Mode:    BlendNormal,
		Opacity: 1,
		Visible: true,
	}
}

// NewFillLayer creates a visible solid-color layer.
func NewFillLayer(name string, color RGBA) *Layer {
	l := NewLayer(name)
	l.Fill = &color
	return l
}

// push appends a committed stroke, initially active.
func (l *Layer) push(s *Stroke) {
	l.strokes = append(l.strokes, s)
	l.active = append(l.active, true)
}

// StrokeCount returns the number of committed strokes, active or not.
func (l *Layer) StrokeCount() int { return len(l.strokes) }

// ActiveStrokes returns the strokes that participate in the raster, in
// commit order. The returned slice is freshly allocated.
func (l *Layer) ActiveStrokes() []*Stroke {
	out := make([]*Stroke, 0, len(l.strokes))
	for i, s := range l.strokes {
		if l.active[i] {
			out = append(out, s)
		}
	}
	return out
}

// setActive flips a stroke's activity flag. Returns ErrUnknownStroke if
// the id is not held, and false if the flag already had the wanted value.
func (l *Layer) setActive(id uuid.UUID, active bool) (bool, error) {
	for i, s := range l.strokes {
		if s.id == id {
			if l.active[i] == active {
				return false, nil
			}
			l.active[i] = active
			return true, nil
		}
	}
	return false, ErrUnknownStroke
}

// lastActive returns the most recently committed active stroke, or nil.
func (l *Layer) lastActive() *Stroke {
	for i := len(l.strokes) - 1; i >= 0; i-- {
		if l.active[i] {
			return l.strokes[i]
		}
	}
	return nil
}

// lastInactive returns the most recently committed inactive stroke, or nil.
func (l *Layer) lastInactive() *Stroke {
	for i := len(l.strokes) - 1; i >= 0; i-- {
		if !l.active[i] {
			return l.strokes[i]
		}
	}
	return nil
}

// Document is the ordered layer stack, bottom to top, plus the canvas
// dimensions. The ordering defines compositing order.
type Document struct {
	width  int
	height int
	layers []*Layer
}

// NewDocument creates an empty document with the given canvas size.
func NewDocument(width, height int) *Document {
	return &Document{width: width, height: height}
}

// Width returns the canvas width in pixels.
func (d *Document) Width() int { return d.width }

// Height returns the canvas height in pixels.
func (d *Document) Height() int { return d.height }

// Layers returns the stack bottom to top. Callers must not reorder the
// returned slice directly; use the document operations.
func (d *Document) Layers() []*Layer { return d.layers }

// Layer finds a layer by id.
func (d *Document) Layer(id uuid.UUID) (*Layer, bool) {
	for _, l := range d.layers {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// AddLayer appends a layer to the top of the stack.
func (d *Document) AddLayer(l *Layer) {
	d.layers = append(d.layers, l)
}

// InsertLayer places a layer at the given stack index (0 = bottom).
// Out-of-range indices clamp.
func (d *Document) InsertLayer(l *Layer, index int) {
	if index < 0 {
		index = 0
	}
	if index > len(d.layers) {
		index = len(d.layers)
	}
	d.layers = append(d.layers, nil)
	copy(d.layers[index+1:], d.layers[index:])
	d.layers[index] = l
}

// RemoveLayer detaches a layer from the stack. The caller owns releasing
// the layer's raster buffer (the engine does this).
func (d *Document) RemoveLayer(id uuid.UUID) (*Layer, error) {
	for i, l := range d.layers {
		if l.ID == id {
			d.layers = append(d.layers[:i], d.layers[i+1:]...)
			return l, nil
		}
	}
	return nil, ErrUnknownLayer
}

// MoveLayer reorders a layer to the given stack index.
func (d *Document) MoveLayer(id uuid.UUID, index int) error {
	l, err := d.RemoveLayer(id)
	if err != nil {
		return err
	}
	d.InsertLayer(l, index)
	return nil
}
