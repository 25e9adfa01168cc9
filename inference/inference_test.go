package inference

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyKot/glyphnet/dataset"
	"github.com/AnthonyKot/glyphnet/imaging"
	"github.com/AnthonyKot/glyphnet/neuralnet"
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// biasOnly returns a one-layer model whose scores are sigmoid(biases),
// whatever the input.
func biasOnly(nInputs int, biases ...float64) *neuralnet.Snapshot {
	return &neuralnet.Snapshot{Layers: []neuralnet.LayerParameters{{
		NInputs:    nInputs,
		NNeurons:   len(biases),
		Weights:    make([]float64, nInputs*len(biases)),
		Biases:     biases,
		Activation: neuralnet.ActivationSigmoid,
	}}}
}

func TestClassToString(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"}, {9, "9"}, {10, "A"}, {11, "B"}, {35, "Z"},
	}
	for _, tt := range tests {
		got, err := ClassToString(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	for _, bad := range []int{-1, 36} {
		_, err := ClassToString(bad)
		assert.ErrorIs(t, err, ErrClassRange)
	}
}

func TestPrepareForInference(t *testing.T) {
	raw := make([]int, 16)
	for i := range raw {
		raw[i] = 255
	}
	for y := 0; y < 4; y++ {
		raw[y*4] = 0 // dark stroke down the left edge
	}
	img, err := PrepareForInference(raw, 4, 4, 50)
	require.NoError(t, err)
	require.Len(t, img, 16)

	var ink int
	for _, v := range img {
		assert.Contains(t, []int{0, 1}, v)
		ink += v
	}
	assert.Equal(t, 4, ink)
	assert.Equal(t, 0, img[0], "stroke is recentered away from the edge")

	blank := make([]int, 16)
	for i := range blank {
		blank[i] = 255
	}
	img, err = PrepareForInference(blank, 4, 4, 50)
	require.NoError(t, err)
	assert.Equal(t, make([]int, 16), img)

	_, err = PrepareForInference(raw[:15], 4, 4, 50)
	require.ErrorIs(t, err, imaging.ErrSize)
}

func TestPredictorNotLoaded(t *testing.T) {
	p := NewPredictor(DefaultOptions())
	assert.False(t, p.Loaded())
	_, err := p.Predict(make([]int, 576), 5)
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = p.Recognize(make([]int, 784), 5)
	require.ErrorIs(t, err, ErrNotLoaded)
	_, _, err = p.Evaluate([]dataset.Sample{{Label: 0, Pixels: make([]int, 576)}})
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestPredictTopK(t *testing.T) {
	p := NewPredictor(Options{DefaultSize: 4, TargetSize: 2, Threshold: 50})
	require.NoError(t, p.Load(biasOnly(4, 0, 1, -1)))
	require.True(t, p.Loaded())

	preds, err := p.Predict([]int{1, 0, 0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, 1, preds[0].Class)
	assert.Equal(t, "1", preds[0].Label)
	assert.Equal(t, 0, preds[1].Class)

	// sigmoid(1) + sigmoid(0) + sigmoid(-1) == 1.5
	assert.InDelta(t, 100*sigmoid(1)/1.5, preds[0].Percent, 1e-9)
	assert.InDelta(t, 100*0.5/1.5, preds[1].Percent, 1e-9)

	all, err := p.Predict([]int{0, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	var total float64
	for _, pr := range all {
		total += pr.Percent
	}
	assert.InDelta(t, 100, total, 1e-9)
}

func TestPredictTiesKeepLowerClassFirst(t *testing.T) {
	p := NewPredictor(Options{DefaultSize: 4, TargetSize: 2, Threshold: 50})
	require.NoError(t, p.Load(biasOnly(4, 0.5, 0.5, 0.5)))

	preds, err := p.Predict(make([]int, 4), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{preds[0].Class, preds[1].Class, preds[2].Class})
}

func TestPredictRejectsWrongSize(t *testing.T) {
	p := NewPredictor(Options{DefaultSize: 4, TargetSize: 2, Threshold: 50})
	require.NoError(t, p.Load(biasOnly(4, 0, 0)))
	_, err := p.Predict(make([]int, 5), 1)
	require.ErrorIs(t, err, neuralnet.ErrShape)
}

func TestPredictRejectsEmptyImage(t *testing.T) {
	p := NewPredictor(Options{DefaultSize: 1, TargetSize: 1, Threshold: 50})
	require.NoError(t, p.Load(biasOnly(1, 0, 0)))
	for _, pixels := range [][]int{nil, {}} {
		_, err := p.Predict(pixels, DefaultTopK)
		require.ErrorIs(t, err, neuralnet.ErrShape)
	}
}

func TestRecognize(t *testing.T) {
	p := NewPredictor(Options{DefaultSize: 4, TargetSize: 4, Threshold: 50})
	require.NoError(t, p.Load(biasOnly(16, -2, 3)))

	raw := make([]int, 16)
	for i := range raw {
		raw[i] = 255
	}
	raw[5] = 0
	preds, err := p.Recognize(raw, DefaultTopK)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, 1, preds[0].Class)
}

func TestLoadRejectsMismatchedModel(t *testing.T) {
	p := NewPredictor(Options{DefaultSize: 4, TargetSize: 2, Threshold: 50})
	require.ErrorIs(t, p.Load(biasOnly(9, 0)), neuralnet.ErrShape)
	require.ErrorIs(t, p.Load(&neuralnet.Snapshot{}), neuralnet.ErrNoLayers)
	assert.False(t, p.Loaded())
}

func TestLoadFileAndEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json.lzw")
	s := biasOnly(4, 0, 2)
	s.Meta = &neuralnet.Metadata{RunID: "abc", Epoch: 17, ValidLoss: 0.3}
	require.NoError(t, neuralnet.SaveFile(path, s))

	p := NewPredictor(Options{DefaultSize: 4, TargetSize: 2, Threshold: 50})
	require.NoError(t, p.LoadFile(path))
	require.NotNil(t, p.Metadata())
	assert.Equal(t, 17, p.Metadata().Epoch)

	samples := []dataset.Sample{
		{Label: 1, Pixels: []int{1, 0, 0, 0}},
		{Label: 1, Pixels: []int{0, 1, 0, 0}},
		{Label: 0, Pixels: []int{0, 0, 1, 1}},
	}
	loss, conf, err := p.Evaluate(samples)
	require.NoError(t, err)
	assert.Equal(t, 3, conf.Total)
	assert.Equal(t, 2, conf.Hits)
	assert.InDelta(t, 2.0/3, conf.Accuracy(), 1e-12)

	lo, hi := 0.5, sigmoid(2)
	hitLoss := lo*lo + (hi-1)*(hi-1)
	missLoss := (lo-1)*(lo-1) + hi*hi
	assert.InDelta(t, (2*hitLoss+missLoss)/3, loss, 1e-12)

	_, _, err = p.Evaluate(nil)
	require.ErrorIs(t, err, dataset.ErrInvalidInput)
}
