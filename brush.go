package easel

import (
	"errors"
	"sort"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
)

// Brush-related errors.
var (
	// ErrUnknownBrush is returned when a stroke references a brush id the
	// configured BrushSource cannot resolve.
	ErrUnknownBrush = errors.New("easel: unknown brush id")

	// ErrUnresolvedChannel is returned when a brush references a texture
	// channel that is not registered. Tessellation requires a fully
	// resolved brush.
	ErrUnresolvedChannel = errors.New("easel: brush texture channel not registered")

	// ErrInvalidBrush is returned for brushes with out-of-range parameters.
	ErrInvalidBrush = errors.New("easel: invalid brush parameters")
)

// BrushKind selects how a stroke becomes geometry and how it composites.
//
// The kinds form a closed set sharing one placement algorithm: erasers run
// the exact stamped placement path and differ only in the compositing
// operation tagged on the emitted geometry.
type BrushKind uint8

const (
	// BrushStamped places discrete texture stamps along the path.
	BrushStamped BrushKind = iota

	// BrushProcedural generates a continuous ribbon mesh from the path.
	BrushProcedural

	// BrushEraser is stamped placement tagged destination-out.
	BrushEraser
)

// String returns a human-readable name for the brush kind.
func (k BrushKind) String() string {
	switch k {
	case BrushStamped:
		return "Stamped"
	case BrushProcedural:
		return "Procedural"
	case BrushEraser:
		return "Eraser"
	default:
		return "Unknown"
	}
}

// CurvePoint is one control point of a response [Curve].
type CurvePoint struct {
	In  float32 // input, normalized [0, 1]
	Out float32 // output multiplier
}

// Curve maps a normalized input (pressure, speed) to an output multiplier
// by linear interpolation over sorted control points. Inputs outside the
// control range clamp to the nearest endpoint.
//
// The zero Curve evaluates to 1 everywhere, so brushes without an explicit
// response behave as constant.
type Curve struct {
	pts []CurvePoint
}

// NewCurve builds a curve from control points. Points are sorted by input;
// at least one point is required for a non-identity curve.
func NewCurve(pts ...CurvePoint) Curve {
	sorted := make([]CurvePoint, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].In < sorted[j].In })
	return Curve{pts: sorted}
}

// LinearCurve returns the identity response: output equals input.
func LinearCurve() Curve {
	return NewCurve(CurvePoint{0, 0}, CurvePoint{1, 1})
}

// ConstantCurve returns a curve that evaluates to v everywhere.
func ConstantCurve(v float32) Curve {
	return NewCurve(CurvePoint{0, v})
}

// Eval evaluates the curve at t. Identical inputs always produce identical
// outputs; tessellation determinism depends on this.
func (c Curve) Eval(t float32) float32 {
	if len(c.pts) == 0 {
		return 1
	}
	if t <= c.pts[0].In {
		return c.pts[0].Out
	}
	last := c.pts[len(c.pts)-1]
	if t >= last.In {
		return last.Out
	}
	for i := 1; i < len(c.pts); i++ {
		if t <= c.pts[i].In {
			a, b := c.pts[i-1], c.pts[i]
			span := b.In - a.In
			if span <= 0 {
				return b.Out
			}
			frac := (t - a.In) / span
			return a.Out + (b.Out-a.Out)*frac
		}
	}
	return last.Out
}

// Brush is the static description of how a stroke becomes geometry and how
// it composites. Brushes are immutable after creation and identified by
// UUID so documents can share them by reference; editing a brush is the
// brush-management collaborator's concern and yields a new version under
// the same id.
type Brush struct {
	// ID identifies the brush across documents and files.
	ID uuid.UUID

	// Kind selects the tessellation variant.
	Kind BrushKind

	// Diameter is the base stamp size (or ribbon width) in pixels at
	// full pressure.
	Diameter float32

	// SpacingRatio is the distance between stamp centers as a fraction of
	// the current stamp size. Smaller values pack stamps denser.
	SpacingRatio float32

	// SizeCurve scales Diameter by pen pressure.
	SizeCurve Curve

	// SpeedCurve scales the pressure-derived size by normalized speed.
	// The zero value means speed does not affect size.
	SpeedCurve Curve

	// OpacityCurve maps pen pressure to stamp opacity.
	OpacityCurve Curve

	// RotationFollowsPath rotates each stamp to the local path direction.
	RotationFollowsPath bool

	// Channels are ordered texture channel references. Multiple channels
	// (shape + grain) are sampled and multiplied inside a single stamp,
	// never as separate stamps, so stamp count stays proportional to path
	// length. Empty means a procedural soft disc.
	Channels []uuid.UUID
}

// Validate reports whether the brush parameters are usable.
func (b *Brush) Validate() error {
	if b.Diameter <= 0 || math32.IsNaN(b.Diameter) {
		return ErrInvalidBrush
	}
	if b.SpacingRatio <= 0 || math32.IsNaN(b.SpacingRatio) {
		return ErrInvalidBrush
	}
	return nil
}

// SizeAt returns the stamp size for the given pressure and normalized
// speed. The result never drops below one pixel so degenerate curves
// cannot stall stamp placement.
func (b *Brush) SizeAt(pressure, speed float32) float32 {
	size := b.Diameter * b.SizeCurve.Eval(pressure) * b.SpeedCurve.Eval(speed)
	return math32.Max(size, 1)
}

// OpacityAt returns the stamp opacity for the given pressure, in [0, 1].
func (b *Brush) OpacityAt(pressure float32) float32 {
	return clamp01(b.OpacityCurve.Eval(pressure))
}

// BrushSource resolves brush ids to brush values. The brush-management
// collaborator implements this; the engine never creates or edits brushes.
type BrushSource interface {
	// Brush returns the current version of the brush with the given id,
	// or false when the id is unknown.
	Brush(id uuid.UUID) (*Brush, bool)
}

// StaticBrushes is a BrushSource backed by a fixed map, handy for tests
// and single-document tools.
type StaticBrushes map[uuid.UUID]*Brush

// Brush implements BrushSource.
func (s StaticBrushes) Brush(id uuid.UUID) (*Brush, bool) {
	b, ok := s[id]
	return b, ok
}
