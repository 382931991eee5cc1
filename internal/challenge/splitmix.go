package challenge

// SplitMix64 is the seeded generator behind daily challenges. The algorithm
// is fixed here instead of using math/rand so the same date yields the same
// challenge on every platform and release:
//
//	state += 0x9E3779B97F4A7C15
//	z = (state ^ (state >> 30)) * 0xBF58476D1CE4E5B9
//	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
//	return z ^ (z >> 31)
type SplitMix64 struct {
	state uint64
}

// NewSplitMix64 seeds a generator
func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

// Next returns the next 64-bit value
func (s *SplitMix64) Next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Range returns a value in [lo, hi] inclusive
func (s *SplitMix64) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(s.Next()%uint64(hi-lo+1))
}
