// Package config loads the YAML description of a training run.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/AnthonyKot/glyphnet/dataset"
	"github.com/AnthonyKot/glyphnet/inference"
	"github.com/AnthonyKot/glyphnet/neuralnet"
	"github.com/AnthonyKot/glyphnet/parallel"
	"github.com/AnthonyKot/glyphnet/trainer"
)

// Source is one CSV file and the offset added to its labels.
type Source struct {
	Path        string `yaml:"path"`
	LabelOffset int    `yaml:"label_offset"`
}

// Config captures the runtime knobs for a training run.
type Config struct {
	Sources []Source `yaml:"sources"`

	InputSize  int `yaml:"input_size"`
	TargetSize int `yaml:"target_size"`
	Threshold  int `yaml:"threshold"`
	MaxRows    int `yaml:"max_rows"`

	Hidden     []int  `yaml:"hidden"`
	Activation string `yaml:"activation"`
	Classes    int    `yaml:"classes"`

	Epochs                 int     `yaml:"epochs"`
	BatchSize              int     `yaml:"batch_size"`
	LearningRate           float64 `yaml:"learning_rate"`
	MinorityClasses        []int   `yaml:"minority_classes"`
	CheckpointWarmupEpochs int     `yaml:"checkpoint_warmup_epochs"`
	TrainRatio             float64 `yaml:"train_ratio"`
	ValidationRatio        float64 `yaml:"validation_ratio"`

	Seed      int64  `yaml:"seed"`
	ModelPath string `yaml:"model_path"` // a ".lzw" suffix selects compressed snapshots
	Workers   int    `yaml:"workers"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
	ModelPath    string
	Workers      int
	MaxRows      int
}

// Default returns the configuration of the reference glyph model: 24x24
// inputs, one hidden layer of 200 ReLU units and 36 sigmoid outputs.
func Default() *Config {
	tc := trainer.DefaultConfig()
	return &Config{
		InputSize:              28,
		TargetSize:             24,
		Threshold:              50,
		MaxRows:                dataset.DefaultMaxRows,
		Hidden:                 []int{200},
		Activation:             neuralnet.ActivationReLU.String(),
		Classes:                inference.NumLabels,
		Epochs:                 tc.Epochs,
		BatchSize:              tc.BatchSize,
		LearningRate:           tc.LearningRate,
		MinorityClasses:        tc.MinorityClasses,
		CheckpointWarmupEpochs: tc.CheckpointWarmupEpochs,
		TrainRatio:             tc.TrainRatio,
		ValidationRatio:        tc.ValidationRatio,
		Seed:                   123,
		ModelPath:              "model.json",
	}
}

// Load reads a Config from YAML on top of Default and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.MaxRows > 0 {
		c.MaxRows = o.MaxRows
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.InputSize <= 0 || c.TargetSize <= 0 {
		return errors.Errorf("input_size and target_size must be > 0 (got %d, %d)", c.InputSize, c.TargetSize)
	}
	if c.Classes <= 0 {
		return errors.Errorf("classes must be > 0 (got %d)", c.Classes)
	}
	for i, h := range c.Hidden {
		if h <= 0 {
			return errors.Errorf("hidden[%d] must be > 0 (got %d)", i, h)
		}
	}
	if _, err := neuralnet.ParseActivation(c.Activation); err != nil {
		return errors.Wrap(err, "activation")
	}
	if c.TrainRatio < 0 || c.ValidationRatio < 0 || c.TrainRatio+c.ValidationRatio > 1 {
		return errors.Wrapf(dataset.ErrInvalidInput, "train_ratio %.3f + validation_ratio %.3f must be non-negative and sum to at most 1",
			c.TrainRatio, c.ValidationRatio)
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	return c.Trainer().Validate()
}

// Paths and Offsets split Sources into the parallel slices Dataset.Load
// takes.
func (c *Config) Paths() []string {
	paths := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		paths[i] = s.Path
	}
	return paths
}

func (c *Config) Offsets() []int {
	offsets := make([]int, len(c.Sources))
	for i, s := range c.Sources {
		offsets[i] = s.LabelOffset
	}
	return offsets
}

func (c *Config) Dataset() dataset.Options {
	return dataset.Options{
		InputSize:  c.InputSize,
		TargetSize: c.TargetSize,
		Threshold:  c.Threshold,
		MaxRows:    c.MaxRows,
	}
}

func (c *Config) Trainer() trainer.Config {
	return trainer.Config{
		Epochs:                 c.Epochs,
		BatchSize:              c.BatchSize,
		LearningRate:           c.LearningRate,
		MinorityClasses:        c.MinorityClasses,
		CheckpointWarmupEpochs: c.CheckpointWarmupEpochs,
		TrainRatio:             c.TrainRatio,
		ValidationRatio:        c.ValidationRatio,
	}
}

func (c *Config) Inference() inference.Options {
	return inference.Options{
		DefaultSize: c.InputSize,
		TargetSize:  c.TargetSize,
		Threshold:   c.Threshold,
	}
}

// Parallel sizes the worker pool. Workers == 0 keeps the core count, 1
// disables fan-out.
func (c *Config) Parallel() parallel.Config {
	cfg := parallel.DefaultConfig()
	if c.Workers > 0 {
		cfg.NumWorkers = c.Workers
		cfg.Enabled = c.Workers > 1
	}
	return cfg
}

// Build creates the network topology described by c: the hidden layers with
// the configured activation and a sigmoid output layer of Classes units.
func (c *Config) Build(nn *neuralnet.NeuralNetwork) error {
	kind, err := neuralnet.ParseActivation(c.Activation)
	if err != nil {
		return err
	}
	nn.ClearLayers()
	in := c.TargetSize * c.TargetSize
	for _, h := range c.Hidden {
		if err := nn.AddLayer(in, h, kind); err != nil {
			return err
		}
		in = h
	}
	return nn.AddLayer(in, c.Classes, neuralnet.ActivationSigmoid)
}
