package random

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandReproducible(t *testing.T) {
	a, b := New(123), New(123)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.IntRange(-15, 5), b.IntRange(-15, 5))
	}
}

func TestIntRangeBounds(t *testing.T) {
	r := New(7)
	for i := 0; i < 1000; i++ {
		v := r.IntRange(5, 15)
		require.GreaterOrEqual(t, v, 5)
		require.Less(t, v, 15)
	}
	assert.Equal(t, 3, r.IntRange(3, 3))
}

func TestNormalMoments(t *testing.T) {
	r := New(1)
	const n = 20000
	var sum, sq float64
	for i := 0; i < n; i++ {
		v := Normal(r)
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		sum += v
		sq += v * v
	}
	mean := sum / n
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, sq/n-mean*mean, 0.05)
}

func TestNormalWithIdentity(t *testing.T) {
	// x1 = x2 = 1, so log(1) = 0.
	assert.Equal(t, 0.0, Normal(Identity{}))
}

func TestPermutation(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, Permutation(Identity{}, 4))

	p := Permutation(New(42), 50)
	seen := make(map[int]bool)
	for _, v := range p {
		seen[v] = true
	}
	assert.Len(t, seen, 50)
	assert.Equal(t, p, Permutation(New(42), 50))
	assert.Empty(t, Permutation(New(42), 0))
}
