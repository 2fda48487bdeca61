package planner

import "math"

// fingerprint hashes the post-elision stack with FNV-1a. Two stacks
// with the same fingerprint compile to the same plan, so callers can
// key a plan cache on it.
func fingerprint(stack []LayerView) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	mix := func(b byte) {
		h ^= uint64(b)
		h *= prime64
	}
	mix32 := func(v uint32) {
		mix(byte(v))
		mix(byte(v >> 8))
		mix(byte(v >> 16))
		mix(byte(v >> 24))
	}
	for _, l := range stack {
		for _, b := range l.ID {
			mix(b)
		}
		mix(byte(l.Mode))
		mix32(math.Float32bits(l.Opacity))
	}
	return h
}
