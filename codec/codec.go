// Package codec decodes compressed tile bytes into RGBA pixel buffers.
//
// jpeg, png, gif, bmp and tiff are handled through disintegration/imaging;
// the webp decoder is registered here on top of it.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/tilevista/go-deepzoom/tile"

	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("deepzoom: tile decode failed")

// Decode converts compressed tile bytes into an RGBA payload with a fixed
// 8-bit row-major layout. Decode failure is distinct from fetch failure.
func Decode(data []byte) (*tile.Payload, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *tile.Payload {
	n := imaging.Clone(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()

	pix := n.Pix
	if n.Stride != w*4 {
		// Repack rows so the payload carries no padding.
		pix = make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(pix[y*w*4:(y+1)*w*4], n.Pix[y*n.Stride:y*n.Stride+w*4])
		}
	}

	return &tile.Payload{Width: w, Height: h, Pix: pix}
}
