// Package neuralnet implements a fully connected feedforward network trained
// with plain batched gradient descent and hand-written backpropagation.
package neuralnet

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/parallel"
	"github.com/AnthonyKot/glyphnet/random"
)

var (
	// ErrShape reports mismatched dimensions between inputs, layers or labels.
	ErrShape = errors.New("neuralnet: shape mismatch")
	// ErrUnknownActivation reports an activation kind with no implementation.
	ErrUnknownActivation = errors.New("neuralnet: unknown activation")
	// ErrNoLayers reports a pass over a network without layers.
	ErrNoLayers = errors.New("neuralnet: network has no layers")
)

// NeuralNetwork is an ordered stack of layers where layer i feeds layer i+1.
type NeuralNetwork struct {
	Layers       []*Layer
	LearningRate float64

	rng random.Source
	par parallel.Config
}

// NewNeuralNetwork returns an empty network. rng seeds the weights of every
// layer added later; it may be nil for networks only built from snapshots.
func NewNeuralNetwork(rng random.Source, learningRate float64) *NeuralNetwork {
	return &NeuralNetwork{
		LearningRate: learningRate,
		rng:          rng,
		par:          parallel.DefaultConfig(),
	}
}

// SetParallelism changes how layers fan out work. Existing layers are
// updated as well.
func (nn *NeuralNetwork) SetParallelism(cfg parallel.Config) {
	nn.par = cfg
	for _, l := range nn.Layers {
		l.par = cfg
	}
}

// AddLayer appends a He-initialized layer.
func (nn *NeuralNetwork) AddLayer(nInputs, nNeurons int, kind ActivationKind) error {
	l, err := NewLayer(nInputs, nNeurons, kind, nn.rng, nn.par)
	if err != nil {
		return errors.Wrapf(err, "add layer %d", len(nn.Layers))
	}
	nn.Layers = append(nn.Layers, l)
	return nil
}

func (nn *NeuralNetwork) ClearLayers() {
	nn.Layers = nil
}

// NumClasses is the width of the output layer.
func (nn *NeuralNetwork) NumClasses() int {
	if len(nn.Layers) == 0 {
		return 0
	}
	return nn.Layers[len(nn.Layers)-1].NNeurons
}

// Output returns the output layer activations of the last forward pass.
func (nn *NeuralNetwork) Output() *mat.Dense {
	if len(nn.Layers) == 0 {
		return nil
	}
	return nn.Layers[len(nn.Layers)-1].outputs
}

// ForwardPass feeds input (batch x features) through every layer and returns
// the output activations (batch x classes).
func (nn *NeuralNetwork) ForwardPass(input *mat.Dense) (*mat.Dense, error) {
	if len(nn.Layers) == 0 {
		return nil, ErrNoLayers
	}
	if input == nil {
		return nil, errors.Wrap(ErrShape, "forward: nil input")
	}
	out := input
	for i, l := range nn.Layers {
		var err error
		if out, err = l.Forward(out); err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
	}
	return out, nil
}

// BackwardPass backpropagates targets (one class index per batch row) after
// a ForwardPass on input and updates every layer.
//
// All node errors are computed first, from the output layer down, so each
// hidden layer reads the weights of the layer above as they were during the
// forward pass. Only then are the weights updated.
func (nn *NeuralNetwork) BackwardPass(input *mat.Dense, targets []int) error {
	if len(nn.Layers) == 0 {
		return ErrNoLayers
	}
	last := len(nn.Layers) - 1
	if err := nn.Layers[last].OutputErrors(targets); err != nil {
		return errors.Wrapf(err, "layer %d", last)
	}
	for i := last - 1; i >= 0; i-- {
		if err := nn.Layers[i].HiddenErrors(nn.Layers[i+1]); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}

	for i := last; i >= 0; i-- {
		prev := input
		if i > 0 {
			prev = nn.Layers[i-1].outputs
		}
		if err := nn.Layers[i].UpdateWeights(nn.LearningRate, prev); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	return nil
}

func (nn *NeuralNetwork) checkLabels(labels []int) (*mat.Dense, error) {
	out := nn.Output()
	if out == nil {
		return nil, errors.Wrap(ErrNoLayers, "no forward pass")
	}
	rows, classes := out.Dims()
	if len(labels) != rows {
		return nil, errors.Wrapf(ErrShape, "%d labels for %d outputs", len(labels), rows)
	}
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, errors.Wrapf(ErrShape, "label %d of row %d out of range [0,%d)", l, i, classes)
		}
	}
	return out, nil
}

// ComputeLoss returns the squared error against the one-hot labels of the
// last forward pass, summed over classes and averaged over samples.
func (nn *NeuralNetwork) ComputeLoss(labels []int) (float64, error) {
	out, err := nn.checkLabels(labels)
	if err != nil {
		return 0, err
	}
	var mse float64
	for b, label := range labels {
		mse += squaredError(out.RawRowView(b), label)
	}
	return mse / float64(len(labels)), nil
}

// Evaluate builds the confusion matrix of the last forward pass against
// labels. The prediction for a row is its argmax output.
func (nn *NeuralNetwork) Evaluate(labels []int) (*Confusion, error) {
	out, err := nn.checkLabels(labels)
	if err != nil {
		return nil, err
	}
	c := newConfusion(nn.NumClasses())
	for b, label := range labels {
		c.add(label, argmax(out.RawRowView(b)))
	}
	return c, nil
}

func (l *Layer) String() string {
	return fmt.Sprintf("%d -> %d (%s)", l.NInputs, l.NNeurons, l.Kind)
}

func (nn *NeuralNetwork) String() string {
	var sb strings.Builder
	for i, layer := range nn.Layers {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("layer %d: %s", i, layer))
	}
	return sb.String()
}
