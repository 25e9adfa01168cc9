// Command glyphnet trains and runs a glyph classifier for handwritten digits
// and capital letters.
//
//	glyphnet train   -config run.yaml [-epochs N] [-model path]
//	glyphnet eval    -config run.yaml -model path [-data file.csv -offset 0]
//	glyphnet predict -config run.yaml -model path -image drawing.png [-k 5]
//	glyphnet dump    -config run.yaml [-n 10] [-out dir]
//	glyphnet collect -config run.yaml -image drawing.png -label 3 -out collected.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/AnthonyKot/glyphnet/config"
	"github.com/AnthonyKot/glyphnet/dataset"
	"github.com/AnthonyKot/glyphnet/inference"
	"github.com/AnthonyKot/glyphnet/neuralnet"
	"github.com/AnthonyKot/glyphnet/random"
	"github.com/AnthonyKot/glyphnet/trainer"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: glyphnet <train|eval|predict|dump|collect> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "train":
		err = runTrain(args)
	case "eval":
		err = runEval(args)
	case "predict":
		err = runPredict(args)
	case "dump":
		err = runDump(args)
	case "collect":
		err = runCollect(args)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

// loadConfig reads -config when given, otherwise starts from the defaults.
func loadConfig(path string, o config.Overrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	epochs := fs.Int("epochs", 0, "Number of epochs")
	batchSize := fs.Int("batch-size", 0, "Batch size")
	lr := fs.Float64("lr", 0, "Learning rate")
	seed := fs.Int64("seed", 0, "PRNG seed")
	model := fs.String("model", "", "Checkpoint path (.lzw suffix compresses)")
	workers := fs.Int("workers", 0, "Worker goroutines per layer")
	maxRows := fs.Int("max-rows", 0, "Records read per source")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, config.Overrides{
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *lr,
		Seed:         *seed,
		ModelPath:    *model,
		Workers:      *workers,
		MaxRows:      *maxRows,
	})
	if err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return errors.New("no sources configured")
	}

	rng := random.New(cfg.Seed)
	data := dataset.New(rng, cfg.Dataset(), nil)
	if err := data.Load(cfg.Paths(), cfg.Offsets()); err != nil {
		return err
	}
	log.Printf("samples=%d sources=%d", len(data.Samples), len(cfg.Sources))

	nn := neuralnet.NewNeuralNetwork(rng, cfg.LearningRate)
	nn.SetParallelism(cfg.Parallel())
	if err := cfg.Build(nn); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := trainer.New(cfg.Trainer(), nn, data, neuralnet.FilePersister{Path: cfg.ModelPath}, nil)
	report, err := t.Run(ctx)
	if err != nil {
		return err
	}
	for _, e := range report.Epochs {
		if e.Checkpoint {
			return nil
		}
	}
	// Short runs never pass the checkpoint warmup; keep their final weights.
	s := nn.Export()
	s.Meta = &neuralnet.Metadata{RunID: report.RunID, Epoch: cfg.Epochs - 1}
	if err := neuralnet.SaveFile(cfg.ModelPath, s); err != nil {
		return err
	}
	log.Printf("no checkpoint taken, final model saved to %s", cfg.ModelPath)
	return nil
}

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	model := fs.String("model", "", "Model path")
	data := fs.String("data", "", "CSV file to evaluate (defaults to the configured sources)")
	offset := fs.Int("offset", 0, "Label offset of -data")
	maxRows := fs.Int("max-rows", 0, "Records read per source")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, config.Overrides{ModelPath: *model, MaxRows: *maxRows})
	if err != nil {
		return err
	}
	paths, offsets := cfg.Paths(), cfg.Offsets()
	if *data != "" {
		paths, offsets = []string{*data}, []int{*offset}
	}

	p := inference.NewPredictor(cfg.Inference())
	if err := p.LoadFile(cfg.ModelPath); err != nil {
		return err
	}
	samples, err := dataset.New(random.New(cfg.Seed), cfg.Dataset(), nil).Read(paths, offsets)
	if err != nil {
		return err
	}
	loss, conf, err := p.Evaluate(samples)
	if err != nil {
		return err
	}
	log.Printf("eval samples=%d loss=%.4f accuracy=%.4f hits=%d", conf.Total, loss, conf.Accuracy(), conf.Hits)
	for i, row := range conf.Rows() {
		log.Printf("confusion class=%d %s", i, row)
	}
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	model := fs.String("model", "", "Model path")
	imagePath := fs.String("image", "", "Drawing to classify (dark ink on light paper)")
	k := fs.Int("k", inference.DefaultTopK, "Number of predictions")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, config.Overrides{ModelPath: *model})
	if err != nil {
		return err
	}
	if *imagePath == "" {
		return errors.New("-image is required")
	}
	p := inference.NewPredictor(cfg.Inference())
	if err := p.LoadFile(cfg.ModelPath); err != nil {
		return err
	}
	raw, err := loadDrawing(*imagePath, cfg.InputSize)
	if err != nil {
		return err
	}
	preds, err := p.Recognize(raw, *k)
	if err != nil {
		return err
	}
	for _, pr := range preds {
		fmt.Printf("%s\t%.2f%%\n", pr.Label, pr.Percent)
	}
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	n := fs.Int("n", 10, "Number of samples to write")
	out := fs.String("out", "dump", "Output directory")
	maxRows := fs.Int("max-rows", 0, "Records read per source")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, config.Overrides{MaxRows: *maxRows})
	if err != nil {
		return err
	}
	data := dataset.New(random.New(cfg.Seed), cfg.Dataset(), nil)
	samples, err := data.Read(cfg.Paths(), cfg.Offsets())
	if err != nil {
		return err
	}
	return dumpSamples(*out, samples, data.Options().TargetSize, *n)
}

func runCollect(args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	imagePath := fs.String("image", "", "Drawing to store")
	label := fs.Int("label", -1, "Class of the drawing")
	out := fs.String("out", "collected.csv", "CSV file to append to")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, config.Overrides{})
	if err != nil {
		return err
	}
	if _, err := inference.ClassToString(*label); err != nil {
		return err
	}
	pixels, err := captureDrawing(*imagePath, cfg.InputSize)
	if err != nil {
		return err
	}
	if err := appendRecord(*out, *label, pixels); err != nil {
		return err
	}
	log.Printf("label=%d appended to %s", *label, *out)
	return nil
}
