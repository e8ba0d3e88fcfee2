package analyzer

import (
	"image"
	"math/rand"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

func createUniformGray(width, height int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// createStripeGray draws vertical ridges of the given period
func createStripeGray(width, height, period int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/(period/2))%2 == 0 {
				img.Pix[y*img.Stride+x] = 220
			} else {
				img.Pix[y*img.Stride+x] = 30
			}
		}
	}
	return img
}

// createQuadrantGray is black with a white bottom-right quadrant starting at (x0, y0)
func createQuadrantGray(width, height, x0, y0 int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := y0; y < height; y++ {
		for x := x0; x < width; x++ {
			img.Pix[y*img.Stride+x] = 255
		}
	}
	return img
}

func createNoiseGray(width, height int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func source(name string, img *image.Gray) imaging.Source {
	return imaging.FromImage(name, img)
}

// panickingSource fails inside Load to exercise panic recovery
type panickingSource struct{}

func (panickingSource) Load() (*image.Gray, error) { panic("decoder exploded") }
func (panickingSource) Name() string               { return "panic.png" }

// maskFromRows builds a 0/255 raster from rows of '#' and '.'
func maskFromRows(rows ...string) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, len(rows[0]), len(rows)))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				g.Pix[y*g.Stride+x] = 255
			}
		}
	}
	return g
}

// gridFromRows builds a binary grid from rows of '#' and '.'
func gridFromRows(rows ...string) *binaryGrid {
	g := newBinaryGrid(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				g.pix[y*g.width+x] = 1
			}
		}
	}
	return g
}
