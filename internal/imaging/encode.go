package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// EncodePNG serializes g losslessly for persistence.
func EncodePNG(g *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, g); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
