// Package internal provides shared test fixtures for the pyramid packages.
package internal

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/tilevista/go-deepzoom/dzi"
	"github.com/tilevista/go-deepzoom/tile"
)

// WritePyramid writes a synthetic pyramid under dir with the standard
// "{base}_files/{level}/{col}_{row}.{format}" layout plus its descriptor,
// and returns the descriptor path. The descriptor format must be "png".
func WritePyramid(tb testing.TB, dir string, desc *dzi.Descriptor) string {
	tb.Helper()

	data, err := desc.Marshal()
	if err != nil {
		tb.Fatal(err)
	}
	dziPath := filepath.Join(dir, "sample.dzi")
	if err := os.WriteFile(dziPath, data, 0644); err != nil {
		tb.Fatal(err)
	}

	filesDir := filepath.Join(dir, "sample_files")
	for level := 0; level <= desc.MaxLevel(); level++ {
		levelDir := filepath.Join(filesDir, strconv.Itoa(level))
		if err := os.MkdirAll(levelDir, 0755); err != nil {
			tb.Fatal(err)
		}

		scale := desc.LevelScale(level)
		maxCol, maxRow := desc.MaxTileIndex(level)
		for row := 0; row <= maxRow; row++ {
			for col := 0; col <= maxCol; col++ {
				r := desc.TileRect(tile.Key{Level: level, Col: col, Row: row})
				w := max(1, int(math.Ceil(r.W*scale)))
				h := max(1, int(math.Ceil(r.H*scale)))

				name := fmt.Sprintf("%d_%d.%s", col, row, desc.Format)
				if err := os.WriteFile(filepath.Join(levelDir, name), PNGTile(tb, w, h), 0644); err != nil {
					tb.Fatal(err)
				}
			}
		}
	}

	return dziPath
}

// PNGTile encodes an opaque w x h PNG.
func PNGTile(tb testing.TB, w, h int) []byte {
	tb.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}
