package neuralnet

import (
	"compress/lzw"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyKot/glyphnet/parallel"
)

// LayerParameters is the serialized form of one layer. Weights are
// flattened row-major, one row per neuron.
type LayerParameters struct {
	NInputs    int            `json:"nInputs"`
	NNeurons   int            `json:"nNeurons"`
	Weights    []float64      `json:"weights"`
	Biases     []float64      `json:"biases"`
	Activation ActivationKind `json:"activation"`
}

// Metadata describes where a checkpoint came from.
type Metadata struct {
	RunID     string    `json:"runId,omitempty"`
	Epoch     int       `json:"epoch"`
	ValidLoss float64   `json:"validLoss"`
	SavedAt   time.Time `json:"savedAt"`
}

// Snapshot holds the topology and parameters of a network.
type Snapshot struct {
	Layers []LayerParameters `json:"layers"`
	Meta   *Metadata         `json:"meta,omitempty"`
}

// Export copies the parameters of every layer.
func (nn *NeuralNetwork) Export() *Snapshot {
	s := &Snapshot{Layers: make([]LayerParameters, len(nn.Layers))}
	for i, l := range nn.Layers {
		w := make([]float64, 0, l.NNeurons*l.NInputs)
		for j := 0; j < l.NNeurons; j++ {
			w = append(w, l.weights.RawRowView(j)...)
		}
		s.Layers[i] = LayerParameters{
			NInputs:    l.NInputs,
			NNeurons:   l.NNeurons,
			Weights:    w,
			Biases:     append([]float64(nil), l.biases...),
			Activation: l.Kind,
		}
	}
	return s
}

// Import replaces the layers of nn with the ones described by s.
func (nn *NeuralNetwork) Import(s *Snapshot) error {
	layers, err := s.build(nn.par)
	if err != nil {
		return err
	}
	nn.Layers = layers
	return nil
}

// FromSnapshot rebuilds a network for inference.
func FromSnapshot(s *Snapshot) (*NeuralNetwork, error) {
	nn := NewNeuralNetwork(nil, 0)
	if err := nn.Import(s); err != nil {
		return nil, err
	}
	return nn, nil
}

func (s *Snapshot) build(par parallel.Config) ([]*Layer, error) {
	if s == nil || len(s.Layers) == 0 {
		return nil, ErrNoLayers
	}
	layers := make([]*Layer, len(s.Layers))
	for i, p := range s.Layers {
		if i > 0 && p.NInputs != s.Layers[i-1].NNeurons {
			return nil, errors.Wrapf(ErrShape, "snapshot layer %d takes %d inputs, previous layer has %d neurons",
				i, p.NInputs, s.Layers[i-1].NNeurons)
		}
		l, err := newLayer(p.NInputs, p.NNeurons, p.Activation, par)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot layer %d", i)
		}
		if len(p.Weights) != p.NNeurons*p.NInputs || len(p.Biases) != p.NNeurons {
			return nil, errors.Wrapf(ErrShape, "snapshot layer %d: %d weights and %d biases for %dx%d",
				i, len(p.Weights), len(p.Biases), p.NNeurons, p.NInputs)
		}
		l.weights = mat.NewDense(p.NNeurons, p.NInputs, append([]float64(nil), p.Weights...))
		l.biases = append([]float64(nil), p.Biases...)
		layers[i] = l
	}
	return layers, nil
}

// Write encodes s as JSON, LZW-compressed when compress is set.
func (s *Snapshot) Write(w io.Writer, compress bool) error {
	if !compress {
		return errors.Wrap(json.NewEncoder(w).Encode(s), "encode snapshot")
	}
	lw := lzw.NewWriter(w, lzw.LSB, 8)
	if err := json.NewEncoder(lw).Encode(s); err != nil {
		lw.Close()
		return errors.Wrap(err, "encode snapshot")
	}
	return errors.Wrap(lw.Close(), "compress snapshot")
}

// ReadSnapshot decodes a snapshot written by Write.
func ReadSnapshot(r io.Reader, compressed bool) (*Snapshot, error) {
	if compressed {
		lr := lzw.NewReader(r, lzw.LSB, 8)
		defer lr.Close()
		r = lr
	}
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &s, nil
}

// IsCompressed reports whether path names an LZW snapshot.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".lzw")
}

// SaveFile writes s to path, replacing any previous file only once the new
// one is complete.
func SaveFile(path string, s *Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	if err := s.Write(tmp, IsCompressed(path)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "save snapshot")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "save snapshot")
}

// LoadFile reads a snapshot saved by SaveFile.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot")
	}
	defer f.Close()
	return ReadSnapshot(f, IsCompressed(path))
}

// FilePersister saves checkpoints to a fixed path.
type FilePersister struct {
	Path string
}

func (p FilePersister) Persist(s *Snapshot) error {
	return SaveFile(p.Path, s)
}
