// Package dataset loads labeled glyph samples, normalizes them and prepares
// the train, validation and test splits.
package dataset

import (
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/imaging"
	"github.com/AnthonyKot/glyphnet/random"
)

// ErrInvalidInput reports a configuration or shape error in the arguments.
var ErrInvalidInput = errors.New("dataset: invalid input")

// Sample is one labeled, square image.
type Sample struct {
	Label  int
	Pixels []int
}

// Options describes the raw and normalized image geometry.
type Options struct {
	InputSize  int // side of the raw images
	TargetSize int // side after normalization
	Threshold  int // binarization threshold
	MaxRows    int // per-source record cap
}

func DefaultOptions() Options {
	return Options{InputSize: 28, TargetSize: 24, Threshold: 50, MaxRows: DefaultMaxRows}
}

// Dataset owns the samples of one training run. All randomness comes from
// rng, drawn sequentially.
type Dataset struct {
	Samples []Sample

	opts   Options
	rng    random.Source
	logger *log.Logger
}

// New returns an empty Dataset. A nil logger means log.Default().
func New(rng random.Source, opts Options, logger *log.Logger) *Dataset {
	if logger == nil {
		logger = log.Default()
	}
	return &Dataset{opts: opts, rng: rng, logger: logger}
}

// Options returns the geometry the dataset normalizes to.
func (d *Dataset) Options() Options { return d.opts }

// Load reads every path, offsets its labels by the matching entry of
// offsets, normalizes the images and appends them to the dataset.
func (d *Dataset) Load(paths []string, offsets []int) error {
	samples, err := d.Read(paths, offsets)
	if err != nil {
		return err
	}
	d.Samples = append(d.Samples, samples...)

	counts := d.Counts()
	labels := make([]int, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	for _, l := range labels {
		d.logger.Printf("dataset: label=%d count=%d", l, counts[l])
	}
	return nil
}

// Read loads and normalizes samples without storing them. It is used for
// evaluation sets that must not leak into the splits.
func (d *Dataset) Read(paths []string, offsets []int) ([]Sample, error) {
	if len(paths) != len(offsets) {
		return nil, errors.Wrapf(ErrInvalidInput, "%d sources but %d label offsets", len(paths), len(offsets))
	}
	var all []Sample
	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		samples, err := ReadCSV(f, offsets[i], d.opts.MaxRows)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		if err := d.Normalize(samples); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		all = append(all, samples...)
	}
	return all, nil
}

// Normalize crops, resizes and binarizes every sample in place.
func (d *Dataset) Normalize(samples []Sample) error {
	in, out := d.opts.InputSize, d.opts.TargetSize
	for i := range samples {
		if len(samples[i].Pixels) != in*in {
			return errors.Wrapf(ErrInvalidInput, "sample %d has %d pixels, want %d", i, len(samples[i].Pixels), in*in)
		}
		img := imaging.ProcessImage(samples[i].Pixels, in, in, out, out)
		samples[i].Pixels = imaging.Binarize(img, d.opts.Threshold)
	}
	return nil
}

// Counts returns the number of stored samples per label.
func (d *Dataset) Counts() map[int]int {
	counts := make(map[int]int)
	for _, s := range d.Samples {
		counts[s.Label]++
	}
	return counts
}

// Split permutes the stored samples and cuts them into contiguous train,
// validation and test partitions of floor(n*trainRatio),
// floor(n*validationRatio) and the remaining samples.
func (d *Dataset) Split(trainRatio, validationRatio float64) (train, validation, test []Sample, err error) {
	if trainRatio < 0 || validationRatio < 0 || trainRatio+validationRatio > 1.0 {
		return nil, nil, nil, errors.Wrapf(ErrInvalidInput,
			"split ratios %.3f + %.3f must be non-negative and sum to at most 1", trainRatio, validationRatio)
	}
	n := len(d.Samples)
	perm := random.Permutation(d.rng, n)
	shuffled := make([]Sample, n)
	for i, idx := range perm {
		shuffled[i] = d.Samples[idx]
	}

	nTrain := int(float64(n) * trainRatio)
	nValid := int(float64(n) * validationRatio)
	train = shuffled[:nTrain:nTrain]
	validation = shuffled[nTrain : nTrain+nValid : nTrain+nValid]
	test = shuffled[nTrain+nValid:]
	return train, validation, test, nil
}

// Augment returns samples extended with two rotated copies of every sample
// whose label is in minority: one rotated by an angle from [-15, 5) degrees
// and one from [5, 15). The input samples are left untouched.
func (d *Dataset) Augment(samples []Sample, minority []int) ([]Sample, error) {
	wanted := make(map[int]bool, len(minority))
	for _, c := range minority {
		wanted[c] = true
	}
	size := d.opts.TargetSize

	out := make([]Sample, len(samples), len(samples)*3)
	copy(out, samples)
	for _, s := range samples {
		if !wanted[s.Label] {
			continue
		}
		for _, bounds := range [2][2]int{{-15, 5}, {5, 15}} {
			angle := d.rng.IntRange(bounds[0], bounds[1])
			rotated, err := imaging.Rotate(s.Pixels, size, size, float64(angle))
			if err != nil {
				return nil, errors.Wrapf(err, "augment label %d", s.Label)
			}
			out = append(out, Sample{Label: s.Label, Pixels: rotated})
		}
	}
	return out, nil
}

// Shuffle reorders samples in place with Fisher-Yates.
func (d *Dataset) Shuffle(samples []Sample) {
	for i := 0; i < len(samples)-1; i++ {
		j := d.rng.IntRange(i, len(samples))
		samples[i], samples[j] = samples[j], samples[i]
	}
}

// Matrix stacks samples into a batch input matrix and their label vector.
func Matrix(samples []Sample) (*mat.Dense, []int) {
	if len(samples) == 0 {
		return nil, nil
	}
	cols := len(samples[0].Pixels)
	data := make([]float64, 0, len(samples)*cols)
	labels := make([]int, len(samples))
	for i, s := range samples {
		for _, p := range s.Pixels {
			data = append(data, float64(p))
		}
		labels[i] = s.Label
	}
	return mat.NewDense(len(samples), cols, data), labels
}
