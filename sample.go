package easel

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
)

// InputSample is one raw pen event delivered by the input collaborator.
// Samples are immutable once recorded.
type InputSample struct {
	// X, Y is the pen position in canvas pixels.
	X, Y float64

	// Pressure is normalized pen pressure in [0, 1].
	Pressure float32

	// TiltX, TiltY is the optional pen tilt; valid only when HasTilt is set.
	TiltX, TiltY float32
	HasTilt      bool

	// Time is a monotonic timestamp relative to gesture start.
	Time time.Duration
}

// StrokePoint is the recorded form of an input sample. Arc length is
// derived on append so tessellation never re-walks the polyline, and a
// point stream's total length is available in constant time.
type StrokePoint struct {
	X, Y      float32
	ArcLength float32 // cumulative path distance from the stroke start
	Pressure  float32
	TiltX     float32
	TiltY     float32
	Seconds   float32 // time since gesture start
}

// StrokeSummary describes a recorded point stream without touching the
// points themselves.
type StrokeSummary struct {
	Points    int
	ArcLength float32
}

// Stroke is a committed, immutable gesture: an ordered point sequence plus
// the id of the brush that was active when the gesture began, and the paint
// color chosen for it. A stroke is the unit of undo history; edits are new
// strokes or explicit erase strokes, never mutations.
type Stroke struct {
	id      uuid.UUID
	brushID uuid.UUID
	color   RGBA
	points  []StrokePoint
}

// ID returns the stroke's unique id.
func (s *Stroke) ID() uuid.UUID { return s.id }

// BrushID returns the id of the brush the stroke was drawn with.
func (s *Stroke) BrushID() uuid.UUID { return s.brushID }

// Color returns the stroke's paint color.
func (s *Stroke) Color() RGBA { return s.color }

// Points returns the recorded points. Callers must not modify the slice;
// committed strokes are immutable.
func (s *Stroke) Points() []StrokePoint { return s.points }

// Summary returns the point count and total arc length.
func (s *Stroke) Summary() StrokeSummary {
	sum := StrokeSummary{Points: len(s.points)}
	if n := len(s.points); n > 0 {
		sum.ArcLength = s.points[n-1].ArcLength
	}
	return sum
}

// StrokeBuilder accumulates samples for the gesture in progress. It is the
// only mutable stroke state, and it is private to one gesture: samples are
// appended in time order by a single goroutine. Discarding a builder needs
// no cleanup because in-progress geometry only ever reaches scratch
// buffers, never a layer's authoritative raster.
type StrokeBuilder struct {
	brushID uuid.UUID
	color   RGBA
	points  []StrokePoint
}

// NewStrokeBuilder starts recording a gesture drawn with the given brush
// and color.
func NewStrokeBuilder(brushID uuid.UUID, color RGBA) *StrokeBuilder {
	return &StrokeBuilder{brushID: brushID, color: color}
}

// Append records one sample, deriving its cumulative arc length.
func (b *StrokeBuilder) Append(s InputSample) {
	p := StrokePoint{
		X:        float32(s.X),
		Y:        float32(s.Y),
		Pressure: clamp01(s.Pressure),
		Seconds:  float32(s.Time.Seconds()),
	}
	if s.HasTilt {
		p.TiltX, p.TiltY = s.TiltX, s.TiltY
	}
	if n := len(b.points); n > 0 {
		prev := b.points[n-1]
		p.ArcLength = prev.ArcLength + math32.Hypot(p.X-prev.X, p.Y-prev.Y)
	}
	b.points = append(b.points, p)
}

// Len returns the number of recorded points.
func (b *StrokeBuilder) Len() int { return len(b.points) }

// Points exposes the recorded points for preview rendering. The slice is
// only valid until the next Append.
func (b *StrokeBuilder) Points() []StrokePoint { return b.points }

// BrushID returns the brush the gesture is drawn with.
func (b *StrokeBuilder) BrushID() uuid.UUID { return b.brushID }

// Color returns the gesture's paint color.
func (b *StrokeBuilder) Color() RGBA { return b.color }

// Commit seals the gesture into an immutable Stroke. The builder must not
// be used afterwards.
func (b *StrokeBuilder) Commit() *Stroke {
	s := &Stroke{
		id:      uuid.New(),
		brushID: b.brushID,
		color:   b.color,
		points:  b.points,
	}
	b.points = nil
	return s
}
