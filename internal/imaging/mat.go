package imaging

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ToMat copies g into a new single-channel 8-bit Mat. The caller closes it.
func ToMat(g *image.Gray) (gocv.Mat, error) {
	c := Compact(g)
	w, h := c.Rect.Dx(), c.Rect.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty raster %dx%d", w, h)
	}

	view, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, c.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap raster: %w", err)
	}
	defer view.Close()

	// Detach from Go memory so the Mat outlives the slice.
	return view.Clone(), nil
}

// FromMat copies a CV_8UC1 Mat into a new *image.Gray.
func FromMat(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, fmt.Errorf("empty matrix")
	}
	if m.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("expected CV_8UC1 matrix, got type %v", m.Type())
	}

	rows, cols := m.Rows(), m.Cols()
	data := m.ToBytes()
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix is not continuous: %d bytes for %dx%d", len(data), cols, rows)
	}

	gray := image.NewGray(image.Rect(0, 0, cols, rows))
	copy(gray.Pix, data)
	return gray, nil
}

// Float32s copies a single-channel CV_32F Mat into a row-major slice.
func Float32s(m gocv.Mat) ([]float32, error) {
	if m.Type() != gocv.MatTypeCV32F {
		return nil, fmt.Errorf("expected CV_32F matrix, got type %v", m.Type())
	}
	data := m.ToBytes()
	n := m.Rows() * m.Cols()
	if len(data) != n*4 {
		return nil, fmt.Errorf("matrix is not continuous: %d bytes for %d floats", len(data), n)
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// Float64s copies a single-channel CV_64F Mat into a row-major slice.
func Float64s(m gocv.Mat) ([]float64, error) {
	if m.Type() != gocv.MatTypeCV64F {
		return nil, fmt.Errorf("expected CV_64F matrix, got type %v", m.Type())
	}
	data := m.ToBytes()
	n := m.Rows() * m.Cols()
	if len(data) != n*8 {
		return nil, fmt.Errorf("matrix is not continuous: %d bytes for %d doubles", len(data), n)
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return out, nil
}

// MatFromFloat32s builds a CV_32F Mat of rows x cols from row-major values.
func MatFromFloat32s(rows, cols int, values []float32) (gocv.Mat, error) {
	if len(values) != rows*cols {
		return gocv.NewMat(), fmt.Errorf("expected %d values, got %d", rows*cols, len(values))
	}

	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV32F, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap float buffer: %w", err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// MinMax returns the smallest and largest intensity in g.
func MinMax(g *image.Gray) (uint8, uint8) {
	c := Compact(g)
	if len(c.Pix) == 0 {
		return 0, 0
	}
	lo, hi := c.Pix[0], c.Pix[0]
	for _, v := range c.Pix[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
