package analyzer

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

// binaryGrid is a row-major 0/1 raster
type binaryGrid struct {
	pix    []uint8
	width  int
	height int
}

func newBinaryGrid(width, height int) *binaryGrid {
	return &binaryGrid{pix: make([]uint8, width*height), width: width, height: height}
}

// gridFromMask marks every non-zero pixel of mask
func gridFromMask(mask *image.Gray) *binaryGrid {
	mask = imaging.Compact(mask)
	g := newBinaryGrid(mask.Rect.Dx(), mask.Rect.Dy())
	for i, v := range mask.Pix {
		if v > 0 {
			g.pix[i] = 1
		}
	}
	return g
}

func (g *binaryGrid) at(x, y int) uint8 {
	return g.pix[y*g.width+x]
}

// neighbours returns P2..P9, clockwise from north
func (g *binaryGrid) neighbours(x, y int) [8]uint8 {
	return [8]uint8{
		g.at(x, y-1),
		g.at(x+1, y-1),
		g.at(x+1, y),
		g.at(x+1, y+1),
		g.at(x, y+1),
		g.at(x-1, y+1),
		g.at(x-1, y),
		g.at(x-1, y-1),
	}
}

// thin reduces the foreground of a 0/255 CV_8UC1 mask to one pixel wide centrelines
// with Zhang-Suen passes. Border pixels are never removed.
func thin(mask gocv.Mat) (*binaryGrid, error) {
	skeleton := gocv.NewMat()
	defer skeleton.Close()
	if err := contrib.Thinning(mask, &skeleton, contrib.ThinningZhangSuen); err != nil {
		return nil, fmt.Errorf("thinning: %w", err)
	}
	if err := checkMat(skeleton, mask); err != nil {
		return nil, err
	}

	out, err := imaging.FromMat(skeleton)
	if err != nil {
		return nil, err
	}
	return gridFromMask(out), nil
}
