// Package tess converts recorded stroke input into drawable geometry.
//
// A stroke arrives as an ordered slice of points with accumulated arc
// length. Stamped brushes walk that arc and place a stamp wherever the
// distance travelled since the previous stamp reaches the spacing
// threshold for the current brush size. Procedural brushes instead
// extrude a ribbon of triangles along the path.
//
// Tessellation is a pure function of its inputs. The same points and
// brush always yield the same geometry, which is what makes stroke
// replay after a device loss safe.
package tess

import (
	"github.com/chewxy/math32"
)

// Point is one resampled stroke point (internal copy to avoid import cycle).
// ArcLength is the accumulated path distance from the first point and
// Seconds is the time offset from the start of the gesture.
type Point struct {
	X, Y      float32
	ArcLength float32
	Pressure  float32
	Seconds   float32
}

// Kind selects the tessellation strategy for a brush.
type Kind uint8

const (
	// Stamped places discrete dabs along the path.
	Stamped Kind = iota
	// Procedural extrudes a continuous triangle ribbon.
	Procedural
	// Eraser places dabs exactly like Stamped but the geometry is
	// tagged for destination-out compositing.
	Eraser
)

// Brush carries the parameters tessellation needs. Size and opacity are
// dynamic response functions so the caller's curve representation never
// leaks into this package.
type Brush struct {
	Kind         Kind
	Diameter     float32
	SpacingRatio float32

	// SizeAt returns the stamp diameter in pixels for the given
	// pressure and speed. Must return a positive value.
	SizeAt func(pressure, speed float32) float32

	// OpacityAt returns per-stamp opacity in [0, 1]. Nil means fully
	// opaque.
	OpacityAt func(pressure float32) float32

	// RotationFollowsPath aligns each stamp with the local path
	// direction instead of keeping it axis aligned.
	RotationFollowsPath bool
}

// Op says how tessellated geometry combines with the layer it lands on.
type Op uint8

const (
	// OpPaint deposits color.
	OpPaint Op = iota
	// OpErase removes existing coverage.
	OpErase
)

// Stamp is one dab of a stamped or eraser brush.
type Stamp struct {
	X, Y     float32
	Size     float32 // diameter in pixels
	Rotation float32 // radians
	Opacity  float32
}

// Vertex is one ribbon mesh vertex. U runs 0..1 along the path, V is 0
// on one edge of the ribbon and 1 on the other.
type Vertex struct {
	X, Y float32
	U, V float32
}

// Geometry is the output of tessellating one stroke. Exactly one of
// Stamps or Mesh is populated depending on the brush kind. A degenerate
// stroke produces empty geometry, never an error.
type Geometry struct {
	Op     Op
	Stamps []Stamp
	Mesh   []Vertex // triangle list
}

// Empty reports whether the stroke produced nothing drawable.
func (g Geometry) Empty() bool {
	return len(g.Stamps) == 0 && len(g.Mesh) == 0
}

// Tessellate converts a stroke into geometry for the given brush.
// Strokes with fewer than two points or zero total arc length yield
// empty geometry.
func Tessellate(points []Point, b Brush) Geometry {
	op := OpPaint
	if b.Kind == Eraser {
		op = OpErase
	}
	g := Geometry{Op: op}
	if len(points) < 2 {
		return g
	}
	total := points[len(points)-1].ArcLength
	if total <= 0 {
		return g
	}

	switch b.Kind {
	case Procedural:
		g.Mesh = ribbon(points, b)
	default:
		g.Stamps = placeStamps(points, b)
	}
	return g
}

// placeStamps walks the arc and emits a stamp at distance zero, then
// again each time the accumulated distance since the last stamp reaches
// spacing ratio times the current stamp size.
func placeStamps(points []Point, b Brush) []Stamp {
	spacing := b.SpacingRatio
	if spacing <= 0 {
		spacing = 0.25
	}

	var stamps []Stamp
	next := points[0].ArcLength
	for i := 1; i < len(points); i++ {
		p0, p1 := points[i-1], points[i]
		segLen := p1.ArcLength - p0.ArcLength
		if segLen <= 0 {
			continue
		}
		dirX := (p1.X - p0.X) / segLen
		dirY := (p1.Y - p0.Y) / segLen
		speed := segmentSpeed(p0, p1, segLen)

		for next <= p1.ArcLength {
			t := (next - p0.ArcLength) / segLen
			pressure := p0.Pressure + (p1.Pressure-p0.Pressure)*t
			size := b.size(pressure, speed)

			s := Stamp{
				X:       p0.X + (p1.X-p0.X)*t,
				Y:       p0.Y + (p1.Y-p0.Y)*t,
				Size:    size,
				Opacity: b.opacity(pressure),
			}
			if b.RotationFollowsPath {
				s.Rotation = math32.Atan2(dirY, dirX)
			}
			stamps = append(stamps, s)

			step := spacing * size
			if step <= 0 {
				step = 1
			}
			next += step
		}
	}
	return stamps
}

// ribbon extrudes the path into a triangle list. Each point gets a pair
// of vertices offset along the path normal by half the local width, and
// each segment contributes one quad split into two triangles.
func ribbon(points []Point, b Brush) []Vertex {
	total := points[len(points)-1].ArcLength

	type edge struct {
		l, r Vertex
	}
	edges := make([]edge, 0, len(points))
	for i, p := range points {
		// The normal at an interior point averages the adjacent
		// segment directions.
		var dx, dy float32
		if i > 0 {
			dx += p.X - points[i-1].X
			dy += p.Y - points[i-1].Y
		}
		if i < len(points)-1 {
			dx += points[i+1].X - p.X
			dy += points[i+1].Y - p.Y
		}
		length := math32.Hypot(dx, dy)
		if length <= 0 {
			continue
		}
		nx, ny := -dy/length, dx/length

		speed := float32(0)
		if i > 0 {
			seg := p.ArcLength - points[i-1].ArcLength
			speed = segmentSpeed(points[i-1], p, seg)
		}
		half := b.size(p.Pressure, speed) / 2
		u := p.ArcLength / total
		edges = append(edges, edge{
			l: Vertex{X: p.X + nx*half, Y: p.Y + ny*half, U: u, V: 0},
			r: Vertex{X: p.X - nx*half, Y: p.Y - ny*half, U: u, V: 1},
		})
	}
	if len(edges) < 2 {
		return nil
	}

	mesh := make([]Vertex, 0, (len(edges)-1)*6)
	for i := 1; i < len(edges); i++ {
		e0, e1 := edges[i-1], edges[i]
		mesh = append(mesh, e0.l, e0.r, e1.l, e1.l, e0.r, e1.r)
	}
	return mesh
}

func segmentSpeed(p0, p1 Point, segLen float32) float32 {
	dt := p1.Seconds - p0.Seconds
	if dt <= 0 {
		return 0
	}
	return segLen / dt
}

func (b Brush) size(pressure, speed float32) float32 {
	if b.SizeAt == nil {
		return math32.Max(b.Diameter, 1)
	}
	return math32.Max(b.SizeAt(pressure, speed), 1)
}

func (b Brush) opacity(pressure float32) float32 {
	if b.OpacityAt == nil {
		return 1
	}
	o := b.OpacityAt(pressure)
	if o < 0 {
		return 0
	}
	if o > 1 {
		return 1
	}
	return o
}
