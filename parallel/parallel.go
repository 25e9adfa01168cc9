// Package parallel fans a loop over independent indices out to goroutines.
// Layers use it for batch rows in the forward pass and for output units in
// the weight update.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config sizes the fan-out. The zero value runs sequentially.
type Config struct {
	Enabled      bool
	NumWorkers   int // upper bound on goroutines per loop
	MinChunkSize int // no goroutine gets fewer indices than this
}

// DefaultConfig uses one worker per logical core.
func DefaultConfig() Config {
	n := cpuid.CPU.LogicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

func Sequential() Config {
	return Config{}
}

// workers returns how many goroutines a loop of n indices gets.
func (c Config) workers(n int) int {
	if !c.Enabled {
		return 1
	}
	w := c.NumWorkers
	if c.MinChunkSize > 0 {
		w = min(w, n/c.MinChunkSize)
	}
	return max(w, 1)
}

// For calls f(i) for every i in [0, n) and returns when all calls are done.
// The range is cut into equal contiguous spans, one goroutine each. f(i) may
// only write state owned by i.
func For(n int, f func(i int), cfg Config) {
	w := cfg.workers(n)
	if w == 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(w)
	for k := 0; k < w; k++ {
		lo, hi := k*n/w, (k+1)*n/w
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f(i)
			}
		}()
	}
	wg.Wait()
}
