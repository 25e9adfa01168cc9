package trainer

import (
	"math"

	"github.com/AnthonyKot/glyphnet/neuralnet"
)

// Checkpointer decides whether a validation loss deserves a checkpoint.
type Checkpointer interface {
	OnImprovement(loss float64) bool
}

// Persister stores a checkpoint. Failures are reported to the caller, which
// decides whether they are fatal.
type Persister interface {
	Persist(s *neuralnet.Snapshot) error
}

// BestModel accepts a loss only when it is strictly below every loss seen
// before.
type BestModel struct {
	BestValidLoss float64
}

func NewBestModel() *BestModel {
	return &BestModel{BestValidLoss: math.Inf(1)}
}

func (b *BestModel) OnImprovement(loss float64) bool {
	if loss < b.BestValidLoss {
		b.BestValidLoss = loss
		return true
	}
	return false
}
