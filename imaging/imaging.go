// Package imaging holds the geometric normalization applied to glyph rasters
// before they reach the network: bounding-box crop and resize, binarization,
// rotation for augmentation and layout reshaping.
//
// Images are flat, row-major int slices of width*height pixels where zero
// means background.
package imaging

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrSize reports a pixel buffer whose length does not match the requested
// dimensions.
var ErrSize = errors.New("imaging: size mismatch")

// BoundingBox is the tightest axis-aligned rectangle holding every non-zero
// pixel. Bounds are inclusive.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY int
}

func (b BoundingBox) Width() int  { return b.MaxX - b.MinX + 1 }
func (b BoundingBox) Height() int { return b.MaxY - b.MinY + 1 }

// FindBoundingBox scans image for non-zero pixels. A blank image yields the
// full frame.
func FindBoundingBox(image []int, width, height int) BoundingBox {
	box := BoundingBox{MinX: width, MinY: height, MaxX: -1, MaxY: -1}
	for i, v := range image {
		if v == 0 {
			continue
		}
		x, y := i%width, i/width
		if x < box.MinX {
			box.MinX = x
		}
		if x > box.MaxX {
			box.MaxX = x
		}
		if y < box.MinY {
			box.MinY = y
		}
		if y > box.MaxY {
			box.MaxY = y
		}
	}
	if box.MinX > box.MaxX {
		return BoundingBox{0, 0, width - 1, height - 1}
	}
	return box
}

// CentralizeAndResize maps the content of box onto a targetWidth x
// targetHeight canvas, scaled uniformly to fit and centered. Sampling is
// nearest neighbour; source coordinates outside the image read as 0.
func CentralizeAndResize(image []int, width, height, targetWidth, targetHeight int, box BoundingBox) []int {
	result := make([]int, targetWidth*targetHeight)

	// float32 keeps the sampling grid identical to the models already trained.
	bw, bh := float32(box.Width()), float32(box.Height())
	cx := float32(box.MinX) + bw/2
	cy := float32(box.MinY) + bh/2
	tcx, tcy := float32(targetWidth)/2, float32(targetHeight)/2
	scale := float32(math.Min(float64(float32(targetWidth)/bw), float64(float32(targetHeight)/bh)))

	for y := 0; y < targetHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			ox := int(math.Floor(float64((float32(x)-tcx)/scale + cx)))
			oy := int(math.Floor(float64((float32(y)-tcy)/scale + cy)))
			if ox >= 0 && ox < width && oy >= 0 && oy < height {
				result[y*targetWidth+x] = image[oy*width+ox]
			}
		}
	}
	return result
}

// ProcessImage crops image to its bounding box and fits it into the target
// canvas. This is the normalization every raw sample goes through.
func ProcessImage(image []int, width, height, targetWidth, targetHeight int) []int {
	box := FindBoundingBox(image, width, height)
	return CentralizeAndResize(image, width, height, targetWidth, targetHeight, box)
}

// Binarize maps every pixel above threshold to 1 and the rest to 0. It must
// run after resizing.
func Binarize(image []int, threshold int) []int {
	out := make([]int, len(image))
	for i, v := range image {
		if v > threshold {
			out[i] = 1
		}
	}
	return out
}

// Invert turns dark-on-light intensities into light-on-dark ones.
func Invert(image []int) []int {
	out := make([]int, len(image))
	for i, v := range image {
		out[i] = 255 - v
	}
	return out
}

// Rotate rotates image by angle degrees about its center. Each destination
// pixel samples the source through the inverse rotation, truncating
// coordinates toward zero; pixels that fall outside are 0.
func Rotate(image []int, width, height int, angle float64) ([]int, error) {
	src, err := newImage(image, height, width)
	if err != nil {
		return nil, errors.Wrap(err, "rotate")
	}
	dst := tensor.New(tensor.Of(tensor.Int), tensor.WithShape(height, width))

	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	centerX, centerY := width/2, height/2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x-centerX), float64(y-centerY)
			ox := int(cos*dx - sin*dy + float64(centerX))
			oy := int(sin*dx + cos*dy + float64(centerY))
			if ox < 0 || ox >= width || oy < 0 || oy >= height {
				continue
			}
			v, err := pixelAt(src, oy, ox)
			if err != nil {
				return nil, errors.Wrap(err, "rotate")
			}
			if err := dst.SetAt(v, y, x); err != nil {
				return nil, errors.Wrap(err, "rotate")
			}
		}
	}
	return dst.Data().([]int), nil
}
