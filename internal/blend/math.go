package blend

// div255 divides x by 255 using a fast shift approximation.
//
// Formula: (x + 255) >> 8. Maximum error is +1 for some inputs, which is
// imperceptible in compositing but matters in reference math; use
// div255Exact there.
func div255(x uint16) uint16 {
	return (x + 255) >> 8
}

// div255Exact divides x by 255 exactly without division
// (Alvy Ray Smith's formula).
func div255Exact(x uint16) uint16 {
	t := x + 1
	return (t + (t >> 8)) >> 8
}

// mulDiv255 multiplies two bytes and divides by 255, fast approximation.
func mulDiv255(a, b byte) byte {
	return byte(div255(uint16(a) * uint16(b)))
}

// MulDiv255Exact multiplies two bytes and divides by 255 exactly.
// Exported for reference evaluation in tests.
func MulDiv255Exact(a, b byte) byte {
	return byte(div255Exact(uint16(a) * uint16(b)))
}

// addClamp adds two bytes, saturating at 255.
func addClamp(a, b byte) byte {
	sum := uint16(a) + uint16(b)
	if sum > 255 {
		return 255
	}
	return byte(sum)
}

func minByte(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}

func maxByte(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}

func absDiff(a, b byte) byte {
	if a > b {
		return a - b
	}
	return b - a
}
