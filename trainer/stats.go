package trainer

import "time"

// Window accumulates timing and loss across the batches of one epoch.
type Window struct {
	samples int
	compute time.Duration
	steps   int
	loss    float64
}

// Record adds one batch to the window.
func (w *Window) Record(batchSize int, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.compute += computeTime
	w.steps++
	w.loss += loss * float64(batchSize)
}

// Snapshot returns aggregated stats and resets the window.
func (w *Window) Snapshot() Stats {
	snap := Stats{Samples: w.samples, Duration: w.compute}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgBatchMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	if w.samples > 0 {
		snap.TrainLoss = w.loss / float64(w.samples)
	}
	*w = Window{}
	return snap
}

// Stats represents loggable epoch metrics.
type Stats struct {
	Samples       int
	Duration      time.Duration
	SamplesPerSec float64
	AvgBatchMS    float64
	TrainLoss     float64 // per-sample loss averaged over the epoch, measured before each update
}
