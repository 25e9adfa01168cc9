package neuralnet

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/parallel"
)

// UpdateWeights applies one gradient descent step from the current deltas:
//
//	weight[j,i] -= lr * sum_b delta[b,j] * previousOutputs[b,i]
//	bias[j]     -= lr * sum_b delta[b,j]
//
// Gradients are summed over the batch, not averaged, so the batch size scales
// the effective learning rate. Output units are updated in parallel; each
// unit owns its weight row and bias.
func (l *Layer) UpdateWeights(lr float64, previousOutputs *mat.Dense) error {
	if l.deltas == nil {
		return errors.Wrap(ErrShape, "update: no errors computed")
	}
	batch, _ := l.deltas.Dims()
	if r, c := previousOutputs.Dims(); r != batch || c != l.NInputs {
		return errors.Wrapf(ErrShape, "update: previous outputs %dx%d, want %dx%d", r, c, batch, l.NInputs)
	}

	parallel.For(l.NNeurons, func(j int) {
		grad := make([]float64, l.NInputs)
		var biasGrad float64
		for b := 0; b < batch; b++ {
			d := l.deltas.At(b, j)
			biasGrad += d
			if d != 0 {
				floats.AddScaled(grad, d, previousOutputs.RawRowView(b))
			}
		}
		floats.AddScaled(l.weights.RawRowView(j), -lr, grad)
		l.biases[j] -= lr * biasGrad
	}, l.par)
	return nil
}
