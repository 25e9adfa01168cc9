package imaging

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// newImage lays pixels out as a rows x cols tensor. The element count is
// checked by the reshape.
func newImage(pixels []int, rows, cols int) (*tensor.Dense, error) {
	if rows <= 0 || cols <= 0 || len(pixels) == 0 {
		return nil, errors.Wrapf(ErrSize, "cannot lay out %d pixels as %dx%d", len(pixels), rows, cols)
	}
	backing := make([]int, len(pixels))
	copy(backing, pixels)

	t := tensor.New(tensor.WithShape(len(backing)), tensor.WithBacking(backing))
	if err := t.Reshape(rows, cols); err != nil {
		return nil, errors.Wrapf(ErrSize, "%d pixels as %dx%d: %v", len(pixels), rows, cols, err)
	}
	return t, nil
}

// pixelAt reads the pixel at (y, x) of a 2D image tensor.
func pixelAt(img *tensor.Dense, y, x int) (int, error) {
	v, err := img.At(y, x)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Reshape1Dto2D lays data out as rows x cols.
func Reshape1Dto2D(data []int, rows, cols int) ([][]int, error) {
	img, err := newImage(data, rows, cols)
	if err != nil {
		return nil, err
	}
	out := make([][]int, rows)
	for r := range out {
		out[r] = make([]int, cols)
		for c := range out[r] {
			if out[r][c], err = pixelAt(img, r, c); err != nil {
				return nil, errors.Wrap(err, "reshape")
			}
		}
	}
	return out, nil
}

// Reshape2Dto1D flattens a rectangular matrix row by row.
func Reshape2Dto1D(m [][]int) ([]int, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return []int{}, nil
	}
	rows, cols := len(m), len(m[0])
	img := tensor.New(tensor.Of(tensor.Int), tensor.WithShape(rows, cols))
	for r, row := range m {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrSize, "row %d has %d columns, want %d", r, len(row), cols)
		}
		for c, v := range row {
			if err := img.SetAt(v, r, c); err != nil {
				return nil, errors.Wrap(err, "flatten")
			}
		}
	}
	return img.Data().([]int), nil
}
