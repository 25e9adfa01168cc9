// Package random provides the single seeded stream shared by weight
// initialization, dataset shuffling and augmentation.
package random

import (
	"math"
	"math/rand"
)

// Source is a sequential pseudo-random stream. Implementations are not safe
// for concurrent use; every draw must happen on one goroutine to keep runs
// reproducible for a fixed seed.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntRange returns a uniform integer in [min, max).
	IntRange(min, max int) int
}

// Rand is the default Source backed by math/rand.
type Rand struct {
	r *rand.Rand
}

func New(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

func (r *Rand) Float64() float64 {
	return r.r.Float64()
}

func (r *Rand) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + r.r.Intn(max-min)
}

// Normal draws a standard normal sample with the Box-Muller transform. Both
// uniform draws are shifted to (0, 1] so the logarithm never sees zero.
func Normal(src Source) float64 {
	x1 := 1 - src.Float64()
	x2 := 1 - src.Float64()
	return math.Sqrt(-2*math.Log(x1)) * math.Cos(2*math.Pi*x2)
}

// Permutation returns the indices 0..n-1 shuffled with Fisher-Yates, each
// position i swapped with a uniform index in [i, n).
func Permutation(src Source, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n-1; i++ {
		j := src.IntRange(i, n)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// Identity never permutes: IntRange always yields its lower bound and
// Float64 always yields zero. Useful to make splits and shuffles keep the
// input order.
type Identity struct{}

func (Identity) Float64() float64 { return 0 }

func (Identity) IntRange(min, _ int) int { return min }
