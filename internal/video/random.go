package video

import (
	"math/rand"
	"time"
)

// UniformSource supplies the uniform random draws the model needs for
// subsampling, slot selection and neighbour selection. The source is injected
// at construction rather than read from a package-level generator so that
// runs are reproducible under a fixed seed.
//
// Implementations need not be safe for concurrent use: the model only draws
// from its source inside the confined update phase of Segment.
type UniformSource interface {
	// Intn returns a uniform random int in [0, n). n must be > 0.
	Intn(n int) int
}

// NewSeededSource returns a UniformSource backed by math/rand with the given
// seed. Equal seeds yield equal draw sequences.
func NewSeededSource(seed int64) UniformSource {
	return rand.New(rand.NewSource(seed))
}

// NewTimeSource returns a UniformSource seeded from the wall clock, for runs
// where reproducibility is not required.
func NewTimeSource() UniformSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
