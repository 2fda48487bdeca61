package planner

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/easel/internal/blend"
	"github.com/gogpu/easel/internal/raster"
)

var (
	// ErrUnknownSource means a pass named a layer the lookup cannot
	// resolve.
	ErrUnknownSource = errors.New("planner: unknown source layer")
	// ErrBadSlot means a pass read an intermediate slot no earlier
	// pass produced.
	ErrBadSlot = errors.New("planner: pass reads unwritten slot")
)

// Lookup resolves a layer id to its raster buffer.
type Lookup func(uuid.UUID) (*raster.Buffer, error)

// Evaluate executes the plan on the CPU and writes the result into dst.
// It is the reference executor for the GPU path and the fallback when
// no device is available.
func Evaluate(p Plan, dst *raster.Buffer, lookup Lookup, pool *raster.Pool) error {
	if p.Base != nil {
		base, err := resolveLayer(p.Base.Layer, lookup)
		if err != nil {
			return err
		}
		if err := dst.CopyFrom(base); err != nil {
			return err
		}
	} else {
		dst.Clear()
	}

	slots := make(map[SlotID]*raster.Buffer, p.Slots)
	defer func() {
		for _, buf := range slots {
			pool.Put(buf)
		}
	}()

	for _, pass := range p.Passes {
		target := dst
		if pass.Target != SlotCanvas {
			target = pool.Get(dst.Width(), dst.Height())
			slots[pass.Target] = target
		}
		// Sources fold into the target bottom-up. The first source
		// of a fuse pass lands on a cleared buffer, where any
		// operator reduces to a plain opacity-scaled copy via
		// source-over.
		for i, src := range pass.Sources {
			buf, err := resolveSource(src, slots, lookup)
			if err != nil {
				return err
			}
			op := pass.Op
			if pass.Target != SlotCanvas && i == 0 {
				op = blend.ModeNormal
			}
			if err := raster.Composite(target, buf, op, src.Opacity); err != nil {
				return fmt.Errorf("pass %v: %w", pass.Op, err)
			}
		}
	}
	return nil
}

// EvaluateSequential composites the stack one layer at a time with no
// planning at all. Plan evaluation must match it pixel for pixel within
// one 8-bit step.
func EvaluateSequential(stack []LayerView, dst *raster.Buffer, lookup Lookup) error {
	dst.Clear()
	for _, l := range stack {
		if !l.Visible || l.Opacity <= 0 {
			continue
		}
		buf, err := resolveLayer(l.ID, lookup)
		if err != nil {
			return err
		}
		if err := raster.Composite(dst, buf, l.Mode, l.Opacity); err != nil {
			return err
		}
	}
	return nil
}

func resolveSource(s Source, slots map[SlotID]*raster.Buffer, lookup Lookup) (*raster.Buffer, error) {
	if s.Kind == SourceSlot {
		buf, ok := slots[s.Slot]
		if !ok {
			return nil, ErrBadSlot
		}
		return buf, nil
	}
	return resolveLayer(s.Layer, lookup)
}

func resolveLayer(id uuid.UUID, lookup Lookup) (*raster.Buffer, error) {
	buf, err := lookup(id)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, ErrUnknownSource
	}
	return buf, nil
}
