package easel

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/google/uuid"

	"github.com/gogpu/easel/internal/blend"
	"github.com/gogpu/easel/internal/gpu"
	"github.com/gogpu/easel/internal/parallel"
	"github.com/gogpu/easel/internal/planner"
	"github.com/gogpu/easel/internal/raster"
	"github.com/gogpu/easel/internal/tess"
	"github.com/gogpu/easel/internal/texture"
)

var (
	// ErrStrokeInProgress is returned by BeginStroke while another
	// stroke is being recorded.
	ErrStrokeInProgress = errors.New("easel: stroke already in progress")
	// ErrNoStrokeInProgress is returned when appending or ending a
	// stroke that was never begun.
	ErrNoStrokeInProgress = errors.New("easel: no stroke in progress")
	// ErrNothingToUndo means the layer has no active stroke left.
	ErrNothingToUndo = errors.New("easel: nothing to undo")
	// ErrNothingToRedo means the layer has no undone stroke left.
	ErrNothingToRedo = errors.New("easel: nothing to redo")
)

// speedHalfRate is the pen speed in px/s that maps to the midpoint of a
// brush speed curve.
const speedHalfRate = 1000.0

// Config tunes an Engine.
type Config struct {
	// Workers is the replay worker count. Zero uses GOMAXPROCS.
	Workers int

	// GPUBudgetBytes caps GPU layer allocations. Zero uses the
	// default budget.
	GPUBudgetBytes uint64

	// EnableGPU opens a device at startup. Without it the engine
	// still tracks GPU resources logically and composites on the CPU.
	EnableGPU bool
}

// Engine drives the paint pipeline for one document: it records input
// into strokes, tessellates them into layer rasters, compiles the layer
// stack into a dispatch plan, and produces composited frames.
//
// The CPU-side stroke history is the source of truth. Layer rasters and
// all GPU state derive from it by replay, so device loss and undo both
// reduce to re-running tessellation.
//
// Engine is safe for concurrent use; operations serialize internally.
type Engine struct {
	mu sync.Mutex

	doc      *Document
	brushes  BrushSource
	textures *texture.Registry

	store  *raster.Store
	rpool  *raster.Pool
	canvas *raster.Buffer
	pool   *parallel.Pool

	backend   *gpu.Backend
	pipeline  *gpu.Pipeline
	table     *gpu.Table
	presenter *gpu.Presenter

	// Cached plan, keyed by the stack fingerprint.
	plan      planner.Plan
	planValid bool

	// In-progress stroke state. The preview mask holds the
	// uncommitted stroke and is discarded on cancel or device loss.
	building     *StrokeBuilder
	buildLayer   uuid.UUID
	buildBrush   *Brush
	buildSampler tess.SampleFunc
	previewMask  *raster.Mask

	handlerMu sync.RWMutex
	handler   EventHandler
}

// New creates an engine for the document. The brush source resolves
// stroke brush ids and is typically backed by the application's brush
// library.
func New(doc *Document, brushes BrushSource, cfg Config) (*Engine, error) {
	if doc == nil || doc.Width() <= 0 || doc.Height() <= 0 {
		return nil, errors.New("easel: document with positive dimensions required")
	}
	if brushes == nil {
		brushes = StaticBrushes{}
	}

	canvas, err := raster.NewBuffer(doc.Width(), doc.Height())
	if err != nil {
		return nil, err
	}
	rpool := raster.NewPool(8)

	e := &Engine{
		doc:       doc,
		brushes:   brushes,
		textures:  texture.NewRegistry(),
		store:     raster.NewStore(doc.Width(), doc.Height(), rpool),
		rpool:     rpool,
		canvas:    canvas,
		pool:      parallel.NewPool(cfg.Workers),
		table:     gpu.NewTable(cfg.GPUBudgetBytes),
		presenter: gpu.NewPresenter(),
	}
	e.table.SetHandler(func(ev gpu.Event) { e.emit(resourceEvent(ev)) })

	if cfg.EnableGPU {
		backend := gpu.NewBackend()
		if err := backend.Open(); err != nil {
			Logger().Warn("easel: GPU unavailable, compositing on CPU", "err", err)
		} else {
			e.backend = backend
			if dev, err := backend.Device(); err == nil {
				if pipe, err := gpu.NewPipeline(dev); err != nil {
					Logger().Warn("easel: compute pipeline unavailable", "err", err)
				} else {
					e.pipeline = pipe
				}
			}
		}
	}
	return e, nil
}

// Close releases the engine's workers and GPU resources. The document
// and its stroke history stay valid.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.Close()
	e.presenter.Close()
	if e.pipeline != nil {
		e.pipeline.Destroy()
		e.pipeline = nil
	}
	if e.backend != nil {
		e.backend.Close()
		e.backend = nil
	}
}

// Document returns the engine's document.
func (e *Engine) Document() *Document { return e.doc }

// Textures returns the stamp texture registry.
func (e *Engine) Textures() *texture.Registry { return e.textures }

// SetEventHandler installs the event handler. Passing nil removes it.
func (e *Engine) SetEventHandler(h EventHandler) {
	e.handlerMu.Lock()
	e.handler = h
	e.handlerMu.Unlock()
}

// GPUAvailable reports whether a device is open.
func (e *Engine) GPUAvailable() bool { return e.backend.Available() }

// DirtyLayers returns the layers whose committed history is not yet
// reflected in their GPU allocations. Compositing a frame syncs them;
// recovery syncs whatever it replays.
func (e *Engine) DirtyLayers() []uuid.UUID { return e.table.Dirty() }

func (e *Engine) emit(ev Event) {
	e.handlerMu.RLock()
	h := e.handler
	e.handlerMu.RUnlock()
	if h != nil {
		h(ev)
	}
}

// BeginStroke starts recording a stroke on the given layer with the
// given brush and color. The brush and its texture channels are
// resolved once, so mid-stroke brush edits do not affect the gesture.
func (e *Engine) BeginStroke(layerID, brushID uuid.UUID, color RGBA) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.building != nil {
		return ErrStrokeInProgress
	}
	layer, ok := e.doc.Layer(layerID)
	if !ok {
		return ErrUnknownLayer
	}
	brush, ok := e.brushes.Brush(brushID)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownBrush, brushID)
	}
	if err := brush.Validate(); err != nil {
		return err
	}
	sampler, err := e.textures.Resolve(brush.Channels)
	if err != nil {
		return fmt.Errorf("easel: brush %v: %w", brushID, err)
	}
	if err := e.ensureLayer(layer); err != nil {
		return err
	}

	mask, err := raster.NewMask(e.doc.Width(), e.doc.Height())
	if err != nil {
		return err
	}
	e.building = NewStrokeBuilder(brushID, color)
	e.buildLayer = layerID
	e.buildBrush = brush
	e.buildSampler = sampler
	e.previewMask = mask
	return nil
}

// AppendSample adds one input sample to the stroke in progress and
// refreshes the preview. Tessellation restarts from the full recorded
// path each time, so the preview always matches what EndStroke will
// commit.
func (e *Engine) AppendSample(s InputSample) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.building == nil {
		return ErrNoStrokeInProgress
	}
	e.building.Append(s)

	g := tess.Tessellate(toTessPoints(e.building.Points()), tessBrush(e.buildBrush))
	e.previewMask.Clear()
	rasterizeGeometry(e.previewMask, g, e.buildSampler)
	return nil
}

// EndStroke commits the stroke in progress to its layer and returns it.
// A degenerate gesture still commits, it just leaves no mark.
func (e *Engine) EndStroke() (*Stroke, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.building == nil {
		return nil, ErrNoStrokeInProgress
	}
	stroke := e.building.Commit()
	layer, ok := e.doc.Layer(e.buildLayer)
	if !ok {
		e.clearBuildingLocked()
		return nil, ErrUnknownLayer
	}

	if err := e.applyStroke(layer, stroke, e.buildBrush, e.buildSampler); err != nil {
		e.clearBuildingLocked()
		return nil, err
	}
	layer.push(stroke)
	layerID := layer.ID
	e.table.MarkDirty(layerID)
	e.clearBuildingLocked()

	e.emit(Event{Kind: EventStrokeCommitted, Layer: layerID, Stroke: stroke.ID()})
	return stroke, nil
}

// CancelStroke discards the stroke in progress. Nothing reaches the
// layer. Safe to call when no stroke is being recorded.
func (e *Engine) CancelStroke() {
	e.mu.Lock()
	e.clearBuildingLocked()
	e.mu.Unlock()
}

func (e *Engine) clearBuildingLocked() {
	e.building = nil
	e.buildBrush = nil
	e.buildSampler = nil
	e.previewMask = nil
	e.buildLayer = uuid.UUID{}
}

// Undo deactivates the layer's most recent active stroke and rebuilds
// the layer raster by replay. The stroke stays in the history for Redo.
func (e *Engine) Undo(layerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	layer, ok := e.doc.Layer(layerID)
	if !ok {
		return ErrUnknownLayer
	}
	last := layer.lastActive()
	if last == nil {
		return ErrNothingToUndo
	}
	if _, err := layer.setActive(last.ID(), false); err != nil {
		return err
	}
	if err := e.refreshLayer(layer); err != nil {
		return err
	}
	e.table.MarkDirty(layerID)
	return nil
}

// Redo reactivates the layer's most recently undone stroke and rebuilds
// the layer raster by replay.
func (e *Engine) Redo(layerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	layer, ok := e.doc.Layer(layerID)
	if !ok {
		return ErrUnknownLayer
	}
	last := layer.lastInactive()
	if last == nil {
		return ErrNothingToRedo
	}
	if _, err := layer.setActive(last.ID(), true); err != nil {
		return err
	}
	if err := e.refreshLayer(layer); err != nil {
		return err
	}
	e.table.MarkDirty(layerID)
	return nil
}

// Composite compiles the layer stack, folds the in-progress stroke into
// its layer, evaluates the plan, and returns the frame. The returned
// image aliases engine memory and is valid until the next Composite
// call.
func (e *Engine) Composite() (*image.RGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	layers := e.doc.Layers()
	keep := make(map[uuid.UUID]bool, len(layers))
	views := make([]planner.LayerView, len(layers))
	for i, l := range layers {
		if err := e.ensureLayer(l); err != nil {
			return nil, err
		}
		keep[l.ID] = true
		views[i] = planner.LayerView{
			ID:      l.ID,
			Mode:    blend.Mode(l.Mode),
			Opacity: l.Opacity,
			Visible: l.Visible,
		}
	}
	for _, pruned := range e.store.Retain(keep) {
		e.table.Free(pruned)
	}

	plan := planner.Compile(views)
	if e.planValid && plan.Fingerprint == e.plan.Fingerprint {
		plan = e.plan
	} else {
		e.plan = plan
		e.planValid = true
	}

	lookup := planner.Lookup(e.store.Buffer)
	if preview := e.previewLayerBuffer(); preview != nil {
		defer e.rpool.Put(preview)
		previewID := e.buildLayer
		lookup = func(id uuid.UUID) (*raster.Buffer, error) {
			if id == previewID {
				return preview, nil
			}
			return e.store.Buffer(id)
		}
	}
	if err := planner.Evaluate(plan, e.canvas, lookup, e.rpool); err != nil {
		return nil, err
	}
	for id := range keep {
		e.table.ClearDirty(id)
	}
	return e.canvas.RGBA(), nil
}

// Present composites the document and draws the frame into a windowing
// context at the given position. This is the display integration path
// for hosts built on gogpu.
func (e *Engine) Present(dc gpucontext.TextureDrawer, x, y float32) error {
	frame, err := e.Composite()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presenter.Present(dc, frame, x, y)
}

// previewLayerBuffer returns a copy of the building layer's raster with
// the uncommitted stroke applied, or nil when there is nothing to
// preview. The preview joins its layer before blending, so an eraser in
// progress cuts into that layer alone, exactly as the commit will.
func (e *Engine) previewLayerBuffer() *raster.Buffer {
	if e.building == nil || e.previewMask.Empty() {
		return nil
	}
	layer, ok := e.doc.Layer(e.buildLayer)
	if !ok || !layer.Visible || layer.Opacity <= 0 {
		return nil
	}
	base, err := e.store.Buffer(e.buildLayer)
	if err != nil {
		return nil
	}

	buf := e.rpool.Get(e.doc.Width(), e.doc.Height())
	buf.CopyFrom(base) //nolint:errcheck // pool buffers match document dimensions
	op := raster.OpSourceOver
	if e.buildBrush.Kind == BrushEraser {
		op = raster.OpDestinationOut
	}
	r, g, b, a := e.building.Color().Premul8()
	raster.ApplyMask(buf, e.previewMask, r, g, b, a, op) //nolint:errcheck // mask matches document dimensions
	return buf
}

// InvalidateGPU drops every GPU allocation, simulating or reacting to a
// lost device. Call Recover to rebuild.
func (e *Engine) InvalidateGPU() {
	e.table.InvalidateAll()
}

// Recover rebuilds all layer rasters and GPU allocations by replaying
// the committed stroke history. The stroke in progress, if any, is
// discarded: it exists only in preview state, which died with the
// device.
func (e *Engine) Recover(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearBuildingLocked()
	e.store.Retain(map[uuid.UUID]bool{})

	layers := e.doc.Layers()
	ids := make([]uuid.UUID, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return e.table.Recover(ctx, ids, e.doc.Width(), e.doc.Height(),
		func(ctx context.Context, id uuid.UUID, a *gpu.Allocation) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			layer, ok := e.doc.Layer(id)
			if !ok {
				return ErrUnknownLayer
			}
			if err := e.rebuildLayer(layer); err != nil {
				return err
			}
			return e.degradeRaster(layer, a)
		})
}

// ensureLayer makes sure the layer has a raster buffer and a row in the
// GPU ownership table, rendering fill layers and replaying stroke
// layers on first sight.
func (e *Engine) ensureLayer(l *Layer) error {
	if _, err := e.store.Buffer(l.ID); err == nil {
		return nil
	}
	if err := e.rebuildLayer(l); err != nil {
		return err
	}
	a, err := e.table.Ensure(l.ID, e.doc.Width(), e.doc.Height())
	if err != nil {
		// Out of GPU budget; the CPU raster keeps the layer alive.
		Logger().Warn("easel: layer has no GPU allocation", "layer", l.ID, "err", err)
		return nil
	}
	return e.degradeRaster(l, a)
}

// rebuildLayer derives the layer raster from scratch: the fill color
// for fill layers, the active stroke history for everything else.
func (e *Engine) rebuildLayer(l *Layer) error {
	if _, err := e.store.Ensure(l.ID); err != nil {
		return err
	}
	return e.replayLayer(l)
}

// refreshLayer replays the layer and re-applies resolution degradation
// when its allocation runs below full size.
func (e *Engine) refreshLayer(l *Layer) error {
	if err := e.replayLayer(l); err != nil {
		return err
	}
	a, err := e.table.Lookup(l.ID)
	if err != nil {
		return nil
	}
	return e.degradeRaster(l, a)
}

// degradeRaster passes the layer raster through its reduced allocation
// size, so the CPU copy holds no more detail than the half-resolution
// texture it mirrors.
func (e *Engine) degradeRaster(l *Layer, a *gpu.Allocation) error {
	if a == nil || !a.Degraded() {
		return nil
	}
	buf, release, err := e.store.AcquireWriter(l.ID)
	if err != nil {
		return err
	}
	defer release()

	reduced, err := raster.NewBuffer(a.Width, a.Height)
	if err != nil {
		return err
	}
	raster.Resample(reduced, buf)
	raster.Resample(buf, reduced)
	return nil
}

// replayLayer re-renders a layer from its active strokes. Tessellation
// and mask rasterization run in parallel per stroke; masks then apply
// in commit order, which the blend result depends on.
func (e *Engine) replayLayer(l *Layer) error {
	buf, release, err := e.store.AcquireWriter(l.ID)
	if err != nil {
		return err
	}
	defer release()

	buf.Clear()
	if l.Fill != nil {
		r, g, b, a := l.Fill.Premul8()
		buf.Fill(r, g, b, a)
		return nil
	}

	strokes := l.ActiveStrokes()
	if len(strokes) == 0 {
		return nil
	}

	type rendered struct {
		mask  *raster.Mask
		op    tess.Op
		color RGBA
		err   error
	}
	out := make([]rendered, len(strokes))
	e.pool.ForEach(len(strokes), func(i int) {
		s := strokes[i]
		brush, ok := e.brushes.Brush(s.BrushID())
		if !ok {
			out[i].err = fmt.Errorf("%w: %v", ErrUnknownBrush, s.BrushID())
			return
		}
		sampler, err := e.textures.Resolve(brush.Channels)
		if err != nil {
			out[i].err = err
			return
		}
		mask, err := raster.NewMask(e.doc.Width(), e.doc.Height())
		if err != nil {
			out[i].err = err
			return
		}
		g := tess.Tessellate(toTessPoints(s.Points()), tessBrush(brush))
		rasterizeGeometry(mask, g, sampler)
		out[i] = rendered{mask: mask, op: g.Op, color: s.Color()}
	})

	for i := range out {
		if out[i].err != nil {
			return out[i].err
		}
		op := raster.OpSourceOver
		if out[i].op == tess.OpErase {
			op = raster.OpDestinationOut
		}
		r, g, b, a := out[i].color.Premul8()
		if err := raster.ApplyMask(buf, out[i].mask, r, g, b, a, op); err != nil {
			return err
		}
	}
	return nil
}

// applyStroke renders one committed stroke into the layer raster.
func (e *Engine) applyStroke(l *Layer, s *Stroke, brush *Brush, sampler tess.SampleFunc) error {
	g := tess.Tessellate(toTessPoints(s.Points()), tessBrush(brush))
	if g.Empty() {
		return nil
	}
	mask, err := raster.NewMask(e.doc.Width(), e.doc.Height())
	if err != nil {
		return err
	}
	rasterizeGeometry(mask, g, sampler)

	buf, release, err := e.store.AcquireWriter(l.ID)
	if err != nil {
		return err
	}
	defer release()

	op := raster.OpSourceOver
	if g.Op == tess.OpErase {
		op = raster.OpDestinationOut
	}
	r, gr, b, a := s.Color().Premul8()
	return raster.ApplyMask(buf, mask, r, gr, b, a, op)
}

// rasterizeGeometry accumulates stamp or ribbon coverage into the mask.
func rasterizeGeometry(m *raster.Mask, g tess.Geometry, sampler tess.SampleFunc) {
	if len(g.Stamps) > 0 {
		tess.RasterizeStamps(m, g.Stamps, sampler)
	}
	if len(g.Mesh) > 0 {
		tess.RasterizeMesh(m, g.Mesh)
	}
}

// tessBrush adapts a brush to the tessellator's parameter set. Raw pen
// speed in px/s is squashed into the curve domain so speed curves see
// values in [0, 1).
func tessBrush(b *Brush) tess.Brush {
	var kind tess.Kind
	switch b.Kind {
	case BrushProcedural:
		kind = tess.Procedural
	case BrushEraser:
		kind = tess.Eraser
	default:
		kind = tess.Stamped
	}
	return tess.Brush{
		Kind:                kind,
		Diameter:            b.Diameter,
		SpacingRatio:        b.SpacingRatio,
		RotationFollowsPath: b.RotationFollowsPath,
		SizeAt: func(pressure, speed float32) float32 {
			return b.SizeAt(pressure, speed/(speed+speedHalfRate))
		},
		OpacityAt: b.OpacityAt,
	}
}

func toTessPoints(points []StrokePoint) []tess.Point {
	out := make([]tess.Point, len(points))
	for i, p := range points {
		out[i] = tess.Point{
			X:         p.X,
			Y:         p.Y,
			ArcLength: p.ArcLength,
			Pressure:  p.Pressure,
			Seconds:   p.Seconds,
		}
	}
	return out
}
