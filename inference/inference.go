// Package inference turns raw drawings into class predictions with a trained
// network.
package inference

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/dataset"
	"github.com/AnthonyKot/glyphnet/imaging"
	"github.com/AnthonyKot/glyphnet/neuralnet"
)

var (
	// ErrNotLoaded reports a prediction attempted before a model was loaded.
	ErrNotLoaded = errors.New("inference: no model loaded")
	// ErrClassRange reports a class index with no label.
	ErrClassRange = errors.New("inference: class index out of range")
)

// NumLabels is the number of classes ClassToString can name.
const NumLabels = 36

// DefaultTopK is the number of predictions shown for a drawing.
const DefaultTopK = 5

// ClassToString names class i: "0".."9" for digits, "A".."Z" for 10..35.
func ClassToString(i int) (string, error) {
	switch {
	case i < 0 || i >= NumLabels:
		return "", errors.Wrapf(ErrClassRange, "%d not in [0,%d)", i, NumLabels)
	case i < 10:
		return strconv.Itoa(i), nil
	}
	return string(rune('A' + i - 10)), nil
}

// PrepareForInference converts a captured drawing (dark ink on a light
// canvas, defaultSize x defaultSize) into the binarized targetSize x
// targetSize input the network was trained on.
func PrepareForInference(raw []int, defaultSize, targetSize, threshold int) ([]int, error) {
	if len(raw) != defaultSize*defaultSize {
		return nil, errors.Wrapf(imaging.ErrSize, "drawing has %d pixels, want %dx%d", len(raw), defaultSize, defaultSize)
	}
	img := imaging.Invert(raw)
	img = imaging.ProcessImage(img, defaultSize, defaultSize, targetSize, targetSize)
	return imaging.Binarize(img, threshold), nil
}

// Prediction is one ranked class.
type Prediction struct {
	Class   int
	Label   string
	Score   float64
	Percent float64 // share of Score in the sum of all output scores
}

// Options describe the capture geometry a Predictor expects.
type Options struct {
	DefaultSize int
	TargetSize  int
	Threshold   int
}

func DefaultOptions() Options {
	return Options{DefaultSize: 28, TargetSize: 24, Threshold: 50}
}

// Predictor holds a network reconstructed from a snapshot.
type Predictor struct {
	opts Options
	net  *neuralnet.NeuralNetwork
	meta *neuralnet.Metadata
}

func NewPredictor(opts Options) *Predictor {
	return &Predictor{opts: opts}
}

// Load replaces the model with the one described by s.
func (p *Predictor) Load(s *neuralnet.Snapshot) error {
	net, err := neuralnet.FromSnapshot(s)
	if err != nil {
		return errors.Wrap(err, "inference: load model")
	}
	if in := net.Layers[0].NInputs; in != p.opts.TargetSize*p.opts.TargetSize {
		return errors.Wrapf(neuralnet.ErrShape, "inference: model takes %d inputs, images have %d pixels",
			in, p.opts.TargetSize*p.opts.TargetSize)
	}
	p.net, p.meta = net, s.Meta
	return nil
}

// LoadFile loads a snapshot saved by neuralnet.SaveFile.
func (p *Predictor) LoadFile(path string) error {
	s, err := neuralnet.LoadFile(path)
	if err != nil {
		return err
	}
	return p.Load(s)
}

func (p *Predictor) Loaded() bool { return p.net != nil }

// Metadata returns the checkpoint metadata of the loaded model, if any.
func (p *Predictor) Metadata() *neuralnet.Metadata { return p.meta }

// Predict ranks the classes for one normalized image and returns the k best.
// Equal scores keep the lower class first.
func (p *Predictor) Predict(pixels []int, k int) ([]Prediction, error) {
	if p.net == nil {
		return nil, ErrNotLoaded
	}
	if in := p.net.Layers[0].NInputs; len(pixels) != in {
		return nil, errors.Wrapf(neuralnet.ErrShape, "inference: image has %d pixels, model takes %d", len(pixels), in)
	}
	input := mat.NewDense(1, len(pixels), nil)
	row := input.RawRowView(0)
	for i, v := range pixels {
		row[i] = float64(v)
	}
	out, err := p.net.ForwardPass(input)
	if err != nil {
		return nil, err
	}
	scores := out.RawRowView(0)

	var sum float64
	order := make([]int, len(scores))
	for i, s := range scores {
		order[i] = i
		sum += s
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if k <= 0 || k > len(order) {
		k = len(order)
	}

	preds := make([]Prediction, k)
	for i, c := range order[:k] {
		label, err := ClassToString(c)
		if err != nil {
			label = strconv.Itoa(c)
		}
		preds[i] = Prediction{Class: c, Label: label, Score: scores[c]}
		if sum != 0 {
			preds[i].Percent = 100 * scores[c] / sum
		}
	}
	return preds, nil
}

// Recognize prepares a raw drawing and predicts it.
func (p *Predictor) Recognize(raw []int, k int) ([]Prediction, error) {
	if p.net == nil {
		return nil, ErrNotLoaded
	}
	img, err := PrepareForInference(raw, p.opts.DefaultSize, p.opts.TargetSize, p.opts.Threshold)
	if err != nil {
		return nil, err
	}
	return p.Predict(img, k)
}

// Evaluate measures the loaded model on normalized labeled samples.
func (p *Predictor) Evaluate(samples []dataset.Sample) (float64, *neuralnet.Confusion, error) {
	if p.net == nil {
		return 0, nil, ErrNotLoaded
	}
	inputs, labels := dataset.Matrix(samples)
	if inputs == nil {
		return 0, nil, errors.Wrap(dataset.ErrInvalidInput, "inference: no samples to evaluate")
	}
	if _, err := p.net.ForwardPass(inputs); err != nil {
		return 0, nil, err
	}
	loss, err := p.net.ComputeLoss(labels)
	if err != nil {
		return 0, nil, err
	}
	conf, err := p.net.Evaluate(labels)
	if err != nil {
		return 0, nil, err
	}
	return loss, conf, nil
}
