// Package trainer runs the epoch loop: mini-batch gradient descent over the
// training split, validation after every epoch, best-model checkpoints and a
// final evaluation on the test split.
package trainer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/dataset"
	"github.com/AnthonyKot/glyphnet/neuralnet"
)

// Config captures the knobs of a training run.
type Config struct {
	Epochs                 int
	BatchSize              int
	LearningRate           float64
	MinorityClasses        []int
	CheckpointWarmupEpochs int // checkpoints are considered only once the epoch index exceeds this
	TrainRatio             float64
	ValidationRatio        float64
}

func DefaultConfig() Config {
	return Config{
		Epochs:                 20,
		BatchSize:              32,
		LearningRate:           0.001,
		MinorityClasses:        []int{11, 15, 18, 26},
		CheckpointWarmupEpochs: 15,
		TrainRatio:             0.8,
		ValidationRatio:        0.1,
	}
}

// Validate verifies the config is runnable.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return errors.Errorf("trainer: epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("trainer: batch size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("trainer: learning rate must be > 0 (got %g)", c.LearningRate)
	}
	return nil
}

// Report is the outcome of a run, measured on the test split.
type Report struct {
	RunID     string
	Loss      float64
	Confusion *neuralnet.Confusion
	Epochs    []EpochResult
}

// EpochResult summarizes one epoch.
type EpochResult struct {
	Epoch      int
	ValidLoss  float64
	Checkpoint bool
	Stats      Stats
}

// Trainer drives one network over one dataset.
type Trainer struct {
	// Checkpoint decides which validation losses are saved. It defaults to
	// a BestModel.
	Checkpoint Checkpointer

	cfg       Config
	net       *neuralnet.NeuralNetwork
	data      *dataset.Dataset
	persister Persister
	logger    *log.Logger
}

// New returns a Trainer. persister may be nil, in which case improvements
// are only logged.
func New(cfg Config, net *neuralnet.NeuralNetwork, data *dataset.Dataset, persister Persister, logger *log.Logger) *Trainer {
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{
		Checkpoint: NewBestModel(),
		cfg:        cfg,
		net:        net,
		data:       data,
		persister:  persister,
		logger:     logger,
	}
}

// Run trains for the configured number of epochs and evaluates the result on
// the test split. ctx is checked between epochs; a cancelled run returns
// ctx.Err() without a report.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	if err := t.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(t.net.Layers) == 0 {
		return nil, neuralnet.ErrNoLayers
	}
	t.net.LearningRate = t.cfg.LearningRate

	train, valid, test, err := t.data.Split(t.cfg.TrainRatio, t.cfg.ValidationRatio)
	if err != nil {
		return nil, err
	}
	if train, err = t.data.Augment(train, t.cfg.MinorityClasses); err != nil {
		return nil, err
	}
	if valid, err = t.data.Augment(valid, t.cfg.MinorityClasses); err != nil {
		return nil, err
	}
	if len(train) == 0 {
		return nil, errors.Wrap(dataset.ErrInvalidInput, "trainer: empty training split")
	}

	report := &Report{RunID: uuid.NewString()}
	t.logger.Printf("run=%s train=%d validation=%d test=%d network=[%s]",
		report.RunID, len(train), len(valid), len(test), t.net)

	validX, validY := dataset.Matrix(valid)
	if validX != nil {
		loss, err := t.loss(validX, validY)
		if err != nil {
			return nil, err
		}
		t.logger.Printf("initial valid_loss=%.4f", loss)
	}

	var window Window
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.data.Shuffle(train)
		if err := t.epoch(train, &window); err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		res := EpochResult{Epoch: epoch, Stats: window.Snapshot()}

		if validX != nil {
			if res.ValidLoss, err = t.loss(validX, validY); err != nil {
				return nil, err
			}
			if epoch > t.cfg.CheckpointWarmupEpochs && t.Checkpoint.OnImprovement(res.ValidLoss) {
				res.Checkpoint = true
				t.save(report.RunID, epoch, res.ValidLoss)
			}
		}
		t.logger.Printf("epoch=%d train_loss=%.4f valid_loss=%.4f samples_per_sec=%.1f batch_ms=%.2f",
			epoch, res.Stats.TrainLoss, res.ValidLoss, res.Stats.SamplesPerSec, res.Stats.AvgBatchMS)
		report.Epochs = append(report.Epochs, res)
	}

	testX, testY := dataset.Matrix(test)
	if testX == nil {
		t.logger.Printf("run=%s empty test split, skipping evaluation", report.RunID)
		return report, nil
	}
	if report.Loss, err = t.loss(testX, testY); err != nil {
		return nil, err
	}
	if report.Confusion, err = t.net.Evaluate(testY); err != nil {
		return nil, err
	}
	t.logger.Printf("test loss=%.4f accuracy=%.4f hits=%d total=%d",
		report.Loss, report.Confusion.Accuracy(), report.Confusion.Hits, report.Confusion.Total)
	for i, row := range report.Confusion.Rows() {
		t.logger.Printf("confusion class=%d %s", i, row)
	}
	return report, nil
}

// epoch runs one pass over samples in contiguous batches; the last batch may
// be smaller.
func (t *Trainer) epoch(samples []dataset.Sample, window *Window) error {
	for start := 0; start < len(samples); start += t.cfg.BatchSize {
		end := min(start+t.cfg.BatchSize, len(samples))
		inputs, labels := dataset.Matrix(samples[start:end])

		began := time.Now()
		if _, err := t.net.ForwardPass(inputs); err != nil {
			return err
		}
		loss, err := t.net.ComputeLoss(labels)
		if err != nil {
			return err
		}
		if err := t.net.BackwardPass(inputs, labels); err != nil {
			return err
		}
		window.Record(end-start, time.Since(began), loss)
	}
	return nil
}

func (t *Trainer) loss(inputs *mat.Dense, labels []int) (float64, error) {
	if _, err := t.net.ForwardPass(inputs); err != nil {
		return 0, err
	}
	return t.net.ComputeLoss(labels)
}

func (t *Trainer) save(runID string, epoch int, loss float64) {
	if t.persister == nil {
		t.logger.Printf("epoch=%d new best valid_loss=%.4f (no persister)", epoch, loss)
		return
	}
	s := t.net.Export()
	s.Meta = &neuralnet.Metadata{
		RunID:     runID,
		Epoch:     epoch,
		ValidLoss: loss,
		SavedAt:   time.Now().UTC(),
	}
	if err := t.persister.Persist(s); err != nil {
		t.logger.Printf("epoch=%d checkpoint failed: %v", epoch, err)
		return
	}
	t.logger.Printf("epoch=%d checkpoint saved valid_loss=%.4f", epoch, loss)
}
