package fingerprint

import "math"

const minhashSeed uint64 = 0x9e3779b97f4a7c15

// MinHasher computes fixed-size min-hash sketches with a deterministic family
// of hash functions h_i(x) = mix(a_i*x + b_i).
type MinHasher struct {
	a []uint64
	b []uint64
}

// NewMinHasher creates a sketcher with n hash functions.
func NewMinHasher(n int) *MinHasher {
	m := &MinHasher{a: make([]uint64, n), b: make([]uint64, n)}
	state := minhashSeed
	for i := 0; i < n; i++ {
		state = splitmix64(state)
		m.a[i] = state | 1
		state = splitmix64(state)
		m.b[i] = state
	}
	return m
}

// Sketch returns the minimum of each hash function over the set.
// An empty set yields a sketch of math.MaxUint64 values.
func (m *MinHasher) Sketch(s Set) []uint64 {
	sketch := make([]uint64, len(m.a))
	for i := range sketch {
		sketch[i] = math.MaxUint64
	}
	for fp := range s {
		for i := range sketch {
			if h := mix64(m.a[i]*fp + m.b[i]); h < sketch[i] {
				sketch[i] = h
			}
		}
	}
	return sketch
}

// SketchKeys encodes each sketch slot together with its index so that two
// documents share a key only when they agree on the same slot.
func (m *MinHasher) SketchKeys(s Set) []uint64 {
	sketch := m.Sketch(s)
	keys := make([]uint64, len(sketch))
	for i, v := range sketch {
		keys[i] = mix64(v ^ (uint64(i+1) * minhashSeed))
	}
	return keys
}

func splitmix64(x uint64) uint64 {
	x += minhashSeed
	return mix64(x)
}

func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
