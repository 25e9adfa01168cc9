package imaging

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/pkg/errors"
)

// FromImage samples img onto a size x size grid (nearest neighbour) and
// returns the red channel of each cell as an 8-bit intensity.
func FromImage(img image.Image, size int) []int {
	b := img.Bounds()
	out := make([]int, size*size)
	if b.Dx() == 0 || b.Dy() == 0 {
		return out
	}
	for y := 0; y < size; y++ {
		sy := b.Min.Y + y*b.Dy()/size
		for x := 0; x < size; x++ {
			sx := b.Min.X + x*b.Dx()/size
			r, _, _, _ := img.At(sx, sy).RGBA()
			out[y*size+x] = int(r >> 8)
		}
	}
	return out
}

// CaptureValue converts a captured red channel value into the intensity
// stored for collected drawings: light paper is background, ink is 255.
func CaptureValue(r uint8) int {
	if r > 205 {
		return 0
	}
	return 255
}

// WritePNG encodes a grayscale rendering of pixels. Binarized images are
// stretched from {0,1} to {0,255}.
func WritePNG(w io.Writer, pixels []int, width, height int, binarized bool) error {
	if len(pixels) != width*height {
		return errors.Wrapf(ErrSize, "png: %d pixels for %dx%d", len(pixels), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := pixels[y*width+x]
			if binarized {
				v *= 255
			}
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return errors.Wrap(png.Encode(w, img), "png encode")
}
