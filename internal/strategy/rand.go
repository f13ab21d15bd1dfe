package strategy

import "math/rand/v2"

// SystemRand draws from the process-wide, non-deterministic source.
type SystemRand struct{}

func (SystemRand) Float64() float64 { return rand.Float64() }

// FixedSequence replays a pinned sequence of draws, looping once
// exhausted. Tests use it to force a specific attempt/outcome path
// through a retrying strategy (§9: "tests pin it to obtain deterministic
// sequences").
type FixedSequence struct {
	Values []float64
	i      int
}

func (f *FixedSequence) Float64() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	v := f.Values[f.i%len(f.Values)]
	f.i++
	return v
}
