package neuralnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReLUActivate(t *testing.T) {
	r := ReLU{}
	if got := r.Activate(-1); got != 0 {
		t.Errorf("ReLU.Activate(-1) = %v; want 0", got)
	}
	if got := r.Activate(2); got != 2 {
		t.Errorf("ReLU.Activate(2) = %v; want 2", got)
	}
	if got := r.Derivative(0); got != 0 {
		t.Errorf("ReLU.Derivative(0) = %v; want 0", got)
	}
	if got := r.Derivative(0.3); got != 1 {
		t.Errorf("ReLU.Derivative(0.3) = %v; want 1", got)
	}
}

func TestSigmoidActivate(t *testing.T) {
	s := Sigmoid{}
	got := s.Activate(0)
	if diff := got - 0.5; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("Sigmoid.Activate(0) = %v; want 0.5", got)
	}
	if got := s.Derivative(0.5); got != 0.25 {
		t.Errorf("Sigmoid.Derivative(0.5) = %v; want 0.25", got)
	}
}

func TestActivationKind(t *testing.T) {
	f, err := ActivationReLU.Function()
	require.NoError(t, err)
	assert.Equal(t, ReLU{}, f)

	f, err = ActivationSigmoid.Function()
	require.NoError(t, err)
	assert.Equal(t, Sigmoid{}, f)

	_, err = ActivationKind(7).Function()
	require.ErrorIs(t, err, ErrUnknownActivation)

	k, err := ParseActivation("sigmoid")
	require.NoError(t, err)
	assert.Equal(t, ActivationSigmoid, k)
	assert.Equal(t, "sigmoid", k.String())

	_, err = ParseActivation("tanh")
	require.ErrorIs(t, err, ErrUnknownActivation)
}
