// Package imaging decodes fingerprint captures into single-channel rasters and moves
// them in and out of OpenCV matrices.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	wsq "github.com/jtejido/go-wsq"
	_ "github.com/spakin/netpbm"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
)

// SupportedExtensions lists the file extensions accepted for fingerprint uploads.
var SupportedExtensions = []string{
	".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp",
	".pgm", ".pbm", ".ppm", ".pam", ".wsq",
}

// wsqMagic is the WSQ start-of-image marker
const wsqMagic = "\xff\xa0"

func init() {
	image.RegisterFormat("wsq", wsqMagic, wsq.Decode, decodeWSQConfig)
}

// decodeWSQConfig decodes the whole stream, the WSQ package exposes no header-only reader
func decodeWSQConfig(r io.Reader) (image.Config, error) {
	img, err := wsq.Decode(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: img.ColorModel(),
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
	}, nil
}

// IsSupportedExtension reports whether name carries one of SupportedExtensions.
func IsSupportedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Source yields a freshly allocated grayscale raster owned by the caller.
type Source interface {
	Load() (*image.Gray, error)
	Name() string
}

type fileSource struct {
	path string
}

// FromFile reads and decodes the image at path on Load.
func FromFile(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Load() (*image.Gray, error) {
	if ext := filepath.Ext(s.path); ext != "" && !IsSupportedExtension(s.path) {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("unsupported image format %q", ext), nil)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperrors.NewDecodeError("unable to load image", err)
	}
	gray, _, err := Decode(data)
	return gray, err
}

func (s fileSource) Name() string {
	return filepath.Base(s.path)
}

type bytesSource struct {
	name string
	data []byte
}

// FromBytes decodes an encoded image held in memory on Load.
func FromBytes(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Load() (*image.Gray, error) {
	gray, _, err := Decode(s.data)
	return gray, err
}

func (s bytesSource) Name() string {
	return s.name
}

type imageSource struct {
	name string
	img  image.Image
}

// FromImage wraps an already decoded image. Load always returns a copy.
func FromImage(name string, img image.Image) Source {
	return imageSource{name: name, img: img}
}

func (s imageSource) Load() (*image.Gray, error) {
	if s.img == nil {
		return nil, apperrors.NewDecodeError("no image supplied", nil)
	}
	return ToGray(s.img), nil
}

func (s imageSource) Name() string {
	return s.name
}

// Decode sniffs the format of data and converts the result to grayscale.
func Decode(data []byte) (*image.Gray, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.NewDecodeError("empty image data", nil)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewDecodeError("unable to decode image", err)
	}
	return ToGray(img), format, nil
}

// ToGray converts img into a compact, zero-origin *image.Gray copy.
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// Compact returns g itself when its pixels are tightly packed from the origin,
// otherwise a packed copy.
func Compact(g *image.Gray) *image.Gray {
	if g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	return ToGray(g)
}

// Clone returns an independent copy of g.
func Clone(g *image.Gray) *image.Gray {
	c := Compact(g)
	out := image.NewGray(c.Rect)
	copy(out.Pix, c.Pix)
	return out
}
