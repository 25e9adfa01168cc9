package neuralnet

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/parallel"
	"github.com/AnthonyKot/glyphnet/random"
)

// Layer is one fully connected layer. It keeps the outputs, node errors and
// deltas of the last batch it saw; those buffers are reallocated only when
// the batch size changes.
type Layer struct {
	NInputs  int
	NNeurons int
	Kind     ActivationKind

	activation ActivationFunction
	weights    *mat.Dense // NNeurons x NInputs
	biases     []float64

	outputs    *mat.Dense // batch x NNeurons
	nodeErrors *mat.Dense // dLoss/dOutput, batch x NNeurons
	deltas     *mat.Dense // nodeErrors * activation'(outputs)

	par parallel.Config
}

// NewLayer builds a layer with He-initialized weights and biases drawn from
// src.
func NewLayer(nInputs, nNeurons int, kind ActivationKind, src random.Source, par parallel.Config) (*Layer, error) {
	if src == nil {
		return nil, errors.New("neuralnet: layer needs a random source")
	}
	l, err := newLayer(nInputs, nNeurons, kind, par)
	if err != nil {
		return nil, err
	}
	l.initializeHe(src)
	return l, nil
}

func newLayer(nInputs, nNeurons int, kind ActivationKind, par parallel.Config) (*Layer, error) {
	if nInputs <= 0 || nNeurons <= 0 {
		return nil, errors.Wrapf(ErrShape, "layer %dx%d", nNeurons, nInputs)
	}
	f, err := kind.Function()
	if err != nil {
		return nil, err
	}
	return &Layer{
		NInputs:    nInputs,
		NNeurons:   nNeurons,
		Kind:       kind,
		activation: f,
		weights:    mat.NewDense(nNeurons, nInputs, nil),
		biases:     make([]float64, nNeurons),
		par:        par,
	}, nil
}

// initializeHe draws every bias and weight as N(0,1) * sqrt(2/nInputs), row
// by row, bias first.
func (l *Layer) initializeHe(src random.Source) {
	scale := math.Sqrt(2 / float64(l.NInputs))
	for j := 0; j < l.NNeurons; j++ {
		l.biases[j] = random.Normal(src) * scale
		row := l.weights.RawRowView(j)
		for i := range row {
			row[i] = random.Normal(src) * scale
		}
	}
}

// Outputs returns the activations of the last forward pass. The matrix is
// owned by the layer and overwritten by the next pass.
func (l *Layer) Outputs() *mat.Dense { return l.outputs }

// Forward computes activation(bias + weights . input) for every batch row.
// Rows are processed in parallel.
func (l *Layer) Forward(inputs *mat.Dense) (*mat.Dense, error) {
	batch, cols := inputs.Dims()
	if cols != l.NInputs {
		return nil, errors.Wrapf(ErrShape, "forward: %d input features, layer expects %d", cols, l.NInputs)
	}
	l.outputs = lazyAllocate(l.outputs, batch, l.NNeurons)

	parallel.For(batch, func(b int) {
		x := inputs.RawRowView(b)
		out := l.outputs.RawRowView(b)
		for j := range out {
			out[j] = l.activation.Activate(l.biases[j] + floats.Dot(l.weights.RawRowView(j), x))
		}
	}, l.par)
	return l.outputs, nil
}

// OutputErrors sets the node errors of an output layer to output minus the
// one-hot target, the gradient of the per-unit squared error.
func (l *Layer) OutputErrors(targets []int) error {
	if l.outputs == nil {
		return errors.Wrap(ErrShape, "output errors: no forward pass")
	}
	batch, _ := l.outputs.Dims()
	if len(targets) != batch {
		return errors.Wrapf(ErrShape, "output errors: %d targets for batch of %d", len(targets), batch)
	}
	for b, t := range targets {
		if t < 0 || t >= l.NNeurons {
			return errors.Wrapf(ErrShape, "output errors: target %d of row %d out of range [0,%d)", t, b, l.NNeurons)
		}
	}
	l.nodeErrors = lazyAllocate(l.nodeErrors, batch, l.NNeurons)

	parallel.For(batch, func(b int) {
		squaredErrorGradient(l.nodeErrors.RawRowView(b), l.outputs.RawRowView(b), targets[b])
	}, l.par)
	l.computeDeltas()
	return nil
}

// HiddenErrors propagates the deltas of next back through next's weights:
// nodeError[b,j] = sum_r next.delta[b,r] * next.weight[r,j]. It must run
// before next updates its weights.
func (l *Layer) HiddenErrors(next *Layer) error {
	if l.outputs == nil || next.deltas == nil {
		return errors.Wrap(ErrShape, "hidden errors: missing forward pass or next layer errors")
	}
	if next.NInputs != l.NNeurons {
		return errors.Wrapf(ErrShape, "hidden errors: next layer takes %d inputs, layer has %d neurons", next.NInputs, l.NNeurons)
	}
	batch, _ := l.outputs.Dims()
	if nb, _ := next.deltas.Dims(); nb != batch {
		return errors.Wrapf(ErrShape, "hidden errors: batch %d, next layer batch %d", batch, nb)
	}
	l.nodeErrors = lazyAllocate(l.nodeErrors, batch, l.NNeurons)
	l.nodeErrors.Mul(next.deltas, next.weights)
	l.computeDeltas()
	return nil
}

func (l *Layer) computeDeltas() {
	batch, _ := l.nodeErrors.Dims()
	l.deltas = lazyAllocate(l.deltas, batch, l.NNeurons)
	for b := 0; b < batch; b++ {
		errs, outs, d := l.nodeErrors.RawRowView(b), l.outputs.RawRowView(b), l.deltas.RawRowView(b)
		for j := range d {
			d[j] = errs[j] * l.activation.Derivative(outs[j])
		}
	}
}

// BackpropagateOutput computes the output-layer errors for targets and
// applies the weight update.
func (l *Layer) BackpropagateOutput(targets []int, previousOutputs *mat.Dense, lr float64) error {
	if err := l.OutputErrors(targets); err != nil {
		return err
	}
	return l.UpdateWeights(lr, previousOutputs)
}

// BackpropagateHidden computes the errors of a hidden layer from next and
// applies the weight update. next must not have been updated yet.
func (l *Layer) BackpropagateHidden(next *Layer, previousOutputs *mat.Dense, lr float64) error {
	if err := l.HiddenErrors(next); err != nil {
		return err
	}
	return l.UpdateWeights(lr, previousOutputs)
}

func lazyAllocate(m *mat.Dense, rows, cols int) *mat.Dense {
	if m != nil {
		if r, c := m.Dims(); r == rows && c == cols {
			return m
		}
	}
	return mat.NewDense(rows, cols, nil)
}
