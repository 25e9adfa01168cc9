package neuralnet

import (
	"math"

	"github.com/pkg/errors"
)

// ActivationFunction is applied element-wise to a layer's weighted sums.
// Derivative takes the already activated output, not the pre-activation sum.
type ActivationFunction interface {
	Activate(x float64) float64
	Derivative(output float64) float64
}

type ReLU struct{}

func (r ReLU) Activate(x float64) float64 {
	return math.Max(x, 0)
}

func (r ReLU) Derivative(output float64) float64 {
	if output > 0 {
		return 1
	}
	return 0
}

type Sigmoid struct{}

func (s Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func (s Sigmoid) Derivative(output float64) float64 {
	return output * (1 - output)
}

// ActivationKind tags the activation of a layer in snapshots.
type ActivationKind int

const (
	ActivationReLU ActivationKind = iota
	ActivationSigmoid
)

func (k ActivationKind) String() string {
	switch k {
	case ActivationReLU:
		return "relu"
	case ActivationSigmoid:
		return "sigmoid"
	}
	return "unknown"
}

// Function returns the activation implementation for k.
func (k ActivationKind) Function() (ActivationFunction, error) {
	switch k {
	case ActivationReLU:
		return ReLU{}, nil
	case ActivationSigmoid:
		return Sigmoid{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownActivation, "kind %d", int(k))
}

// ParseActivation maps a config name ("relu", "sigmoid") to its kind.
func ParseActivation(name string) (ActivationKind, error) {
	switch name {
	case "relu":
		return ActivationReLU, nil
	case "sigmoid":
		return ActivationSigmoid, nil
	}
	return 0, errors.Wrapf(ErrUnknownActivation, "%q", name)
}
