package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/AnthonyKot/glyphnet/dataset"
	"github.com/AnthonyKot/glyphnet/imaging"
	"github.com/AnthonyKot/glyphnet/inference"
)

func decodeImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// loadDrawing reads a drawing as raw red-channel intensities on a size x size
// grid, ready for inference.PrepareForInference.
func loadDrawing(path string, size int) ([]int, error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	return imaging.FromImage(img, size), nil
}

// captureDrawing converts a drawing into the 0/255 record stored for
// collected samples.
func captureDrawing(path string, size int) ([]int, error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	raw := imaging.FromImage(img, size)
	pixels := make([]int, len(raw))
	for i, r := range raw {
		pixels[i] = imaging.CaptureValue(uint8(r))
	}
	return pixels, nil
}

// appendRecord appends one labeled drawing to a CSV dataset file.
func appendRecord(path string, label int, pixels []int) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := dataset.WriteRecord(file, label, pixels); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// saveImg writes sample i of samples as a PNG named after its label.
func saveImg(dir string, samples []dataset.Sample, size, i int) (string, error) {
	s := samples[i]
	name, err := inference.ClassToString(s.Label)
	if err != nil {
		name = fmt.Sprint(s.Label)
	}
	path := filepath.Join(dir, fmt.Sprintf("file_%s_%d.png", name, i))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := imaging.WritePNG(file, s.Pixels, size, size, true); err != nil {
		file.Close()
		return "", err
	}
	return path, file.Close()
}

// dumpSamples saves the first n samples as PNG files in dir.
func dumpSamples(dir string, samples []dataset.Sample, size, n int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i < n && i < len(samples); i++ {
		path, err := saveImg(dir, samples, size, i)
		if err != nil {
			return err
		}
		log.Printf("image saved as %s", path)
	}
	return nil
}
