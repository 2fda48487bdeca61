package easel

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/easel/internal/blend"
)

func testBrush(kind BrushKind, diameter float32) *Brush {
	return &Brush{
		ID:           uuid.New(),
		Kind:         kind,
		Diameter:     diameter,
		SpacingRatio: 0.25,
	}
}

func testEngine(t *testing.T, brushes ...*Brush) (*Engine, *Layer, StaticBrushes) {
	t.Helper()
	doc := NewDocument(100, 60)
	layer := NewLayer("paint")
	doc.AddLayer(layer)

	src := StaticBrushes{}
	for _, b := range brushes {
		src[b.ID] = b
	}
	e, err := New(doc, src, Config{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e, layer, src
}

// drawLine records a horizontal stroke and commits it.
func drawLine(t *testing.T, e *Engine, layerID, brushID uuid.UUID, color RGBA, y float64) *Stroke {
	t.Helper()
	if err := e.BeginStroke(layerID, brushID, color); err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 8; i++ {
		err := e.AppendSample(InputSample{
			X: 10 + float64(i)*10, Y: y, Pressure: 1,
			Time: time.Duration(i) * 10 * time.Millisecond,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	s, err := e.EndStroke()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func alphaAt(img *image.RGBA, x, y int) byte {
	return img.Pix[img.PixOffset(x, y)+3]
}

func TestCommitLeavesMark(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	var committed []Event
	e.SetEventHandler(func(ev Event) { committed = append(committed, ev) })

	s := drawLine(t, e, layer.ID, b.ID, RGB(1, 0, 0), 30)
	if s == nil || layer.StrokeCount() != 1 {
		t.Fatal("stroke did not land in the layer")
	}

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 30); a != 255 {
		t.Errorf("stroke center alpha = %d, want 255", a)
	}
	if a := alphaAt(frame, 50, 5); a != 0 {
		t.Errorf("far pixel alpha = %d, want 0", a)
	}

	if len(committed) != 1 || committed[0].Kind != EventStrokeCommitted {
		t.Errorf("events = %v, want one stroke_committed", committed)
	}
	if committed[0].Stroke != s.ID() || committed[0].Layer != layer.ID {
		t.Error("committed event carries wrong ids")
	}
}

func TestEraserZeroesAlpha(t *testing.T) {
	paint := testBrush(BrushStamped, 20)
	erase := testBrush(BrushEraser, 24)
	e, layer, _ := testEngine(t, paint, erase)

	drawLine(t, e, layer.ID, paint.ID, RGB(0, 0, 1), 30)
	drawLine(t, e, layer.ID, erase.ID, RGBA{}, 30)

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 30); a != 0 {
		t.Errorf("erased pixel alpha = %d, want 0", a)
	}
}

func TestUndoRestoresExactPixels(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	drawLine(t, e, layer.ID, b.ID, RGB(1, 0, 0), 20)
	before, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]byte(nil), before.Pix...)

	drawLine(t, e, layer.ID, b.ID, RGB(0, 1, 0), 40)
	if err := e.Undo(layer.ID); err != nil {
		t.Fatal(err)
	}

	after, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(snapshot, after.Pix) {
		t.Error("undo did not restore the exact prior pixels")
	}

	// Redo brings the second stroke back.
	if err := e.Redo(layer.ID); err != nil {
		t.Fatal(err)
	}
	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 40); a != 255 {
		t.Errorf("redone stroke alpha = %d, want 255", a)
	}

	if err := e.Redo(layer.ID); err != ErrNothingToRedo {
		t.Errorf("extra redo: got %v, want ErrNothingToRedo", err)
	}
}

func TestUndoEmptyLayer(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)
	if err := e.Undo(layer.ID); err != ErrNothingToUndo {
		t.Errorf("got %v, want ErrNothingToUndo", err)
	}
}

func TestRecoveryDropsUncommittedStroke(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	committed := drawLine(t, e, layer.ID, b.ID, RGB(1, 0, 0), 20)

	// Start a second stroke but never commit it.
	if err := e.BeginStroke(layer.ID, b.ID, RGB(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 4; i++ {
		err := e.AppendSample(InputSample{X: 10 + float64(i)*20, Y: 45, Pressure: 1})
		if err != nil {
			t.Fatal(err)
		}
	}

	var kinds []EventKind
	e.SetEventHandler(func(ev Event) { kinds = append(kinds, ev.Kind) })

	e.InvalidateGPU()
	if err := e.Recover(context.Background()); err != nil {
		t.Fatal(err)
	}

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 20); a != 255 {
		t.Errorf("committed stroke lost in recovery: alpha = %d", a)
	}
	if a := alphaAt(frame, 50, 45); a != 0 {
		t.Errorf("uncommitted stroke survived recovery: alpha = %d", a)
	}
	if layer.StrokeCount() != 1 || committed == nil {
		t.Error("history changed across recovery")
	}

	var sawLost, sawRecovered bool
	for _, k := range kinds {
		switch k {
		case EventDeviceLost:
			sawLost = true
		case EventRecovered:
			sawRecovered = true
		}
	}
	if !sawLost || !sawRecovered {
		t.Errorf("events = %v, want lost then recovered", kinds)
	}
}

func TestDirtyLayersFollowHistory(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	if len(e.DirtyLayers()) != 0 {
		t.Fatal("fresh engine reports dirty layers")
	}

	drawLine(t, e, layer.ID, b.ID, RGB(1, 0, 0), 30)
	dirty := e.DirtyLayers()
	if len(dirty) != 1 || dirty[0] != layer.ID {
		t.Fatalf("after commit dirty = %v, want [%v]", dirty, layer.ID)
	}

	// A composited frame reflects the full history, clearing the mark.
	if _, err := e.Composite(); err != nil {
		t.Fatal(err)
	}
	if len(e.DirtyLayers()) != 0 {
		t.Error("composite did not sync the dirty layer")
	}

	if err := e.Undo(layer.ID); err != nil {
		t.Fatal(err)
	}
	if len(e.DirtyLayers()) != 1 {
		t.Error("undo left no pending mark")
	}

	// Recovery replays everything, so nothing stays pending.
	e.InvalidateGPU()
	if err := e.Recover(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(e.DirtyLayers()) != 0 {
		t.Error("recovery left dirty layers behind")
	}
}

func TestRecoveryDegradesUnderTightBudget(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	doc := NewDocument(100, 60)
	layer := NewLayer("paint")
	doc.AddLayer(layer)

	// Budget fits the 50x30 half-resolution buffer only.
	e, err := New(doc, StaticBrushes{b.ID: b}, Config{Workers: 2, GPUBudgetBytes: 50 * 30 * 4})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	drawLine(t, e, layer.ID, b.ID, RGB(1, 0, 0), 30)
	before, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]byte(nil), before.Pix...)

	var sawDegraded bool
	e.SetEventHandler(func(ev Event) {
		if ev.Kind == EventDegraded {
			sawDegraded = true
		}
	})

	e.InvalidateGPU()
	if err := e.Recover(context.Background()); err != nil {
		t.Fatal(err)
	}

	after, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(after, 50, 30); a == 0 {
		t.Error("stroke vanished instead of degrading")
	}
	if bytes.Equal(snapshot, after.Pix) {
		t.Error("half-resolution replay left the frame byte-identical")
	}
	if !sawDegraded {
		t.Error("no degradation warning emitted")
	}
}

func TestRecoveryWithNoBudgetKeepsLayers(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	doc := NewDocument(100, 60)
	layerA := NewLayer("a")
	layerB := NewLayer("b")
	doc.AddLayer(layerA)
	doc.AddLayer(layerB)

	// No allocation fits, not even at half resolution. Every layer
	// must still replay onto its CPU raster.
	e, err := New(doc, StaticBrushes{b.ID: b}, Config{Workers: 2, GPUBudgetBytes: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	drawLine(t, e, layerA.ID, b.ID, RGB(1, 0, 0), 20)
	drawLine(t, e, layerB.ID, b.ID, RGB(0, 1, 0), 40)

	e.InvalidateGPU()
	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("recovery aborted: %v", err)
	}

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 20); a != 255 {
		t.Errorf("first layer stroke alpha = %d, want 255", a)
	}
	if a := alphaAt(frame, 50, 40); a != 255 {
		t.Errorf("second layer stroke alpha = %d, want 255", a)
	}
}

func TestEraserPreviewStaysOnItsLayer(t *testing.T) {
	paint := testBrush(BrushStamped, 12)
	erase := testBrush(BrushEraser, 16)

	doc := NewDocument(100, 60)
	doc.AddLayer(NewFillLayer("bg", RGB(1, 0, 0)))
	top := NewLayer("ink")
	doc.AddLayer(top)

	e, err := New(doc, StaticBrushes{paint.ID: paint, erase.ID: erase}, Config{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	drawLine(t, e, top.ID, paint.ID, RGB(0, 0, 1), 30)

	// Erase the ink mid-stroke. The fill underneath must show through
	// instead of being punched transparent.
	if err := e.BeginStroke(top.ID, erase.ID, RGBA{}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 8; i++ {
		err := e.AppendSample(InputSample{
			X: 10 + float64(i)*10, Y: 30, Pressure: 1,
			Time: time.Duration(i) * 10 * time.Millisecond,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	preview, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(preview, 50, 30); a != 255 {
		t.Fatalf("eraser preview cut through the fill layer: alpha = %d", a)
	}
	if r := preview.Pix[preview.PixOffset(50, 30)]; r != 255 {
		t.Errorf("fill red = %d under eraser preview, want 255", r)
	}
	mid := append([]byte(nil), preview.Pix...)

	// Committing the same gesture must not change a pixel.
	if _, err := e.EndStroke(); err != nil {
		t.Fatal(err)
	}
	committed, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mid, committed.Pix) {
		t.Error("preview frame disagrees with the committed frame")
	}
}

func TestPreviewVisibleBeforeCommit(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	if err := e.BeginStroke(layer.ID, b.ID, RGB(1, 0, 0)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 4; i++ {
		err := e.AppendSample(InputSample{X: 10 + float64(i)*20, Y: 30, Pressure: 1})
		if err != nil {
			t.Fatal(err)
		}
	}

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 30); a == 0 {
		t.Error("in-progress stroke not visible in the frame")
	}

	// Cancelling removes it without touching the layer.
	e.CancelStroke()
	frame, err = e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 30); a != 0 {
		t.Errorf("cancelled stroke left pixels: alpha = %d", a)
	}
	if layer.StrokeCount() != 0 {
		t.Error("cancelled stroke reached the layer")
	}
}

func TestDegenerateStrokeCommitsWithoutMark(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	if err := e.BeginStroke(layer.ID, b.ID, RGB(1, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := e.AppendSample(InputSample{X: 50, Y: 30, Pressure: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.EndStroke(); err != nil {
		t.Fatalf("degenerate stroke should commit cleanly: %v", err)
	}

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 30); a != 0 {
		t.Errorf("degenerate stroke left pixels: alpha = %d", a)
	}
}

func TestStrokeStateErrors(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)

	if err := e.AppendSample(InputSample{}); err != ErrNoStrokeInProgress {
		t.Errorf("append: got %v", err)
	}
	if _, err := e.EndStroke(); err != ErrNoStrokeInProgress {
		t.Errorf("end: got %v", err)
	}

	if err := e.BeginStroke(layer.ID, b.ID, RGBA{}); err != nil {
		t.Fatal(err)
	}
	if err := e.BeginStroke(layer.ID, b.ID, RGBA{}); err != ErrStrokeInProgress {
		t.Errorf("double begin: got %v", err)
	}
	e.CancelStroke()

	if err := e.BeginStroke(uuid.New(), b.ID, RGBA{}); err != ErrUnknownLayer {
		t.Errorf("bad layer: got %v", err)
	}
	if err := e.BeginStroke(layer.ID, uuid.New(), RGBA{}); !errors.Is(err, ErrUnknownBrush) {
		t.Errorf("bad brush: got %v", err)
	}
}

func TestFillLayerComposites(t *testing.T) {
	doc := NewDocument(40, 40)
	doc.AddLayer(NewFillLayer("bg", RGB(1, 1, 1)))
	e, err := New(doc, nil, Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 20, 20); a != 255 {
		t.Errorf("fill layer alpha = %d, want 255", a)
	}
	if r := frame.Pix[frame.PixOffset(20, 20)]; r != 255 {
		t.Errorf("fill layer red = %d, want 255", r)
	}
}

func TestHiddenLayerInvisible(t *testing.T) {
	b := testBrush(BrushStamped, 16)
	e, layer, _ := testEngine(t, b)
	drawLine(t, e, layer.ID, b.ID, RGB(1, 0, 0), 30)

	layer.Visible = false
	frame, err := e.Composite()
	if err != nil {
		t.Fatal(err)
	}
	if a := alphaAt(frame, 50, 30); a != 0 {
		t.Errorf("hidden layer still composited: alpha = %d", a)
	}
}

// Layer blend modes and the compositor's internal mode table must agree
// ordinal for ordinal.
func TestBlendModeOrdinalsAligned(t *testing.T) {
	pairs := []struct {
		pub BlendMode
		in  blend.Mode
	}{
		{BlendNormal, blend.ModeNormal},
		{BlendMultiply, blend.ModeMultiply},
		{BlendScreen, blend.ModeScreen},
		{BlendPlus, blend.ModePlus},
		{BlendDarken, blend.ModeDarken},
		{BlendLighten, blend.ModeLighten},
		{BlendDifference, blend.ModeDifference},
		{BlendExclusion, blend.ModeExclusion},
	}
	for _, p := range pairs {
		if uint8(p.pub) != uint8(p.in) {
			t.Errorf("%v = %d but %v = %d", p.pub, p.pub, p.in, p.in)
		}
		if p.pub.Fusable() != p.in.Fusable() {
			t.Errorf("%v fusability disagrees with internal table", p.pub)
		}
	}
}
