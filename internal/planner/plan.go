// Package planner compiles an ordered layer stack into a dispatch plan.
//
// The compiler elides layers that cannot affect the output, then
// partitions the remaining stack into maximal contiguous runs whose
// blend mode is associative and commutative. Each such run becomes one
// fused pass that combines the run's layers into an intermediate slot,
// followed by a single composite of that slot onto the canvas. Layers
// that cannot fuse composite one by one.
//
// A plan is a pure scheduling artifact. Compiling the same stack twice
// yields byte-identical plans, and the fingerprint lets callers reuse a
// cached plan when the stack has not changed.
package planner

import (
	"github.com/google/uuid"

	"github.com/gogpu/easel/internal/blend"
)

// LayerView is the per-layer input the compiler needs. It deliberately
// carries no pixel data.
type LayerView struct {
	ID      uuid.UUID
	Mode    blend.Mode
	Opacity float32
	Visible bool
}

// SlotID names a buffer in the plan. Slot 0 is always the canvas;
// higher slots are intermediates for fused runs.
type SlotID int

// SlotCanvas is the final output buffer.
const SlotCanvas SlotID = 0

// SourceKind distinguishes layer buffers from intermediate slots.
type SourceKind uint8

const (
	// SourceLayer reads a layer's raster buffer.
	SourceLayer SourceKind = iota
	// SourceSlot reads an intermediate produced by an earlier pass.
	SourceSlot
)

// Source is one input to a pass. Opacity is applied to the source
// before the pass operator runs, which keeps fused and sequential
// evaluation pixel-equivalent.
type Source struct {
	Kind    SourceKind
	Layer   uuid.UUID
	Slot    SlotID
	Opacity float32
}

// Pass is one dispatch. Sources blend into Target bottom-up using Op.
// A fuse pass has two or more sources and targets an intermediate
// slot; a composite pass has one source and targets the canvas.
type Pass struct {
	Op      blend.Mode
	Sources []Source
	Target  SlotID
}

// Plan is the compiled schedule for one stack.
//
// Base, when set, seeds the canvas with a plain copy of a layer buffer
// instead of spending a dispatch on it. Passes targeting distinct slots
// have no data dependency on each other; passes targeting the canvas
// must run in order.
type Plan struct {
	Base        *Source
	Passes      []Pass
	Slots       int // intermediate slot count, excluding the canvas
	Fingerprint uint64
}

// Empty reports whether the plan produces a blank canvas.
func (p Plan) Empty() bool {
	return p.Base == nil && len(p.Passes) == 0
}

// Compile turns a bottom-up layer stack into a plan.
func Compile(stack []LayerView) Plan {
	visible := make([]LayerView, 0, len(stack))
	for _, l := range stack {
		if !l.Visible || l.Opacity <= 0 {
			continue
		}
		visible = append(visible, l)
	}

	var plan Plan
	plan.Fingerprint = fingerprint(visible)
	if len(visible) == 0 {
		return plan
	}

	// A fully opaque normal layer at the bottom is a buffer load, not
	// a dispatch.
	if visible[0].Mode == blend.ModeNormal && visible[0].Opacity >= 1 {
		plan.Base = &Source{Kind: SourceLayer, Layer: visible[0].ID, Opacity: 1}
		visible = visible[1:]
	}

	for i := 0; i < len(visible); {
		run := runLength(visible[i:])
		mode := visible[i].Mode

		if run == 1 {
			plan.Passes = append(plan.Passes, Pass{
				Op:      mode,
				Sources: []Source{layerSource(visible[i])},
				Target:  SlotCanvas,
			})
			i++
			continue
		}

		plan.Slots++
		slot := SlotID(plan.Slots)
		sources := make([]Source, run)
		for j := 0; j < run; j++ {
			sources[j] = layerSource(visible[i+j])
		}
		plan.Passes = append(plan.Passes,
			Pass{Op: mode, Sources: sources, Target: slot},
			Pass{Op: mode, Sources: []Source{{Kind: SourceSlot, Slot: slot, Opacity: 1}}, Target: SlotCanvas},
		)
		i += run
	}
	return plan
}

// runLength returns how many layers from the front of the slice share
// one fusable mode. Non-fusable modes always yield a run of one.
func runLength(stack []LayerView) int {
	mode := stack[0].Mode
	if !mode.Fusable() {
		return 1
	}
	n := 1
	for n < len(stack) && stack[n].Mode == mode {
		n++
	}
	return n
}

func layerSource(l LayerView) Source {
	return Source{Kind: SourceLayer, Layer: l.ID, Opacity: l.Opacity}
}
