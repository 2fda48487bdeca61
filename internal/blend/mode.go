// Package blend implements the premultiplied pixel math for layer
// compositing.
//
// All operations work on premultiplied alpha values in the range 0-255,
// following WebGPU conventions. The arithmetic modes (multiply, screen,
// plus, darken, lighten) are defined as pure per-channel operators over
// premultiplied values; this is what makes them associative and
// commutative under layer stacking, which the planner exploits for pass
// fusion. Order-dependent compositing (source-over, destination-out) uses
// the standard Porter-Duff formulas.
//
// References:
//   - Porter-Duff: "Compositing Digital Images" (1984)
//   - W3C Compositing and Blending Level 1: https://www.w3.org/TR/compositing-1/
package blend

// Mode is a layer compositing operator. The ordinals mirror the public
// easel.BlendMode constants; the root package asserts the mapping in its
// tests.
type Mode uint8

const (
	// ModeNormal is source-over alpha compositing.
	ModeNormal Mode = iota
	// ModeMultiply multiplies premultiplied channels.
	ModeMultiply
	// ModeScreen is s + d - s*d.
	ModeScreen
	// ModePlus is saturating addition.
	ModePlus
	// ModeDarken keeps the channel minimum.
	ModeDarken
	// ModeLighten keeps the channel maximum.
	ModeLighten
	// ModeDifference is |d - s|.
	ModeDifference
	// ModeExclusion is s + d - 2*s*d.
	ModeExclusion

	// modeCount is the number of defined modes.
	modeCount
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "Normal"
	case ModeMultiply:
		return "Multiply"
	case ModeScreen:
		return "Screen"
	case ModePlus:
		return "Plus"
	case ModeDarken:
		return "Darken"
	case ModeLighten:
		return "Lighten"
	case ModeDifference:
		return "Difference"
	case ModeExclusion:
		return "Exclusion"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is a defined mode.
func (m Mode) Valid() bool { return m < modeCount }

// Associative reports whether the mode is associative under stacking.
func (m Mode) Associative() bool {
	switch m {
	case ModeMultiply, ModeScreen, ModePlus, ModeDarken, ModeLighten:
		return true
	default:
		return false
	}
}

// Commutative reports whether the mode is commutative under stacking.
func (m Mode) Commutative() bool {
	switch m {
	case ModeMultiply, ModeScreen, ModePlus, ModeDarken, ModeLighten,
		ModeDifference, ModeExclusion:
		return true
	default:
		return false
	}
}

// Fusable reports whether adjacent layers sharing this mode may be
// combined into one pass without changing the composited result.
func (m Mode) Fusable() bool { return m.Associative() && m.Commutative() }

// Func combines one premultiplied source pixel with one premultiplied
// destination pixel.
type Func func(sr, sg, sb, sa, dr, dg, db, da byte) (r, g, b, a byte)

// PixelFunc returns the pixel operator for the given mode.
// Unknown modes fall back to source-over.
func PixelFunc(m Mode) Func {
	switch m {
	case ModeMultiply:
		return pixelMultiply
	case ModeScreen:
		return pixelScreen
	case ModePlus:
		return pixelPlus
	case ModeDarken:
		return pixelDarken
	case ModeLighten:
		return pixelLighten
	case ModeDifference:
		return pixelDifference
	case ModeExclusion:
		return pixelExclusion
	default:
		return SourceOver
	}
}

// SourceOver is standard premultiplied alpha compositing:
// out = s + d*(1 - sa).
func SourceOver(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - sa
	return addClamp(sr, mulDiv255(dr, inv)),
		addClamp(sg, mulDiv255(dg, inv)),
		addClamp(sb, mulDiv255(db, inv)),
		addClamp(sa, mulDiv255(da, inv))
}

// DestinationOut keeps destination where the source is transparent:
// out = d*(1 - sa). This is the eraser operator.
func DestinationOut(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - sa
	return mulDiv255(dr, inv),
		mulDiv255(dg, inv),
		mulDiv255(db, inv),
		mulDiv255(da, inv)
}

func pixelMultiply(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return MulDiv255Exact(sr, dr),
		MulDiv255Exact(sg, dg),
		MulDiv255Exact(sb, db),
		MulDiv255Exact(sa, da)
}

func pixelScreen(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	// Complement-multiply form keeps the operator exactly associative.
	screen := func(s, d byte) byte {
		return 255 - MulDiv255Exact(255-s, 255-d)
	}
	return screen(sr, dr), screen(sg, dg), screen(sb, db), screen(sa, da)
}

func pixelPlus(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return addClamp(sr, dr), addClamp(sg, dg), addClamp(sb, db), addClamp(sa, da)
}

func pixelDarken(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return minByte(sr, dr), minByte(sg, dg), minByte(sb, db), minByte(sa, da)
}

func pixelLighten(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return maxByte(sr, dr), maxByte(sg, dg), maxByte(sb, db), maxByte(sa, da)
}

func pixelDifference(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return absDiff(sr, dr), absDiff(sg, dg), absDiff(sb, db),
		addClamp(sa, mulDiv255(da, 255-sa))
}

func pixelExclusion(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	excl := func(s, d byte) byte {
		sd := MulDiv255Exact(s, d)
		sum := uint16(s) + uint16(d)
		two := uint16(sd) * 2
		if two > sum {
			return 0
		}
		v := sum - two
		if v > 255 {
			return 255
		}
		return byte(v)
	}
	return excl(sr, dr), excl(sg, dg), excl(sb, db),
		addClamp(sa, mulDiv255(da, 255-sa))
}
