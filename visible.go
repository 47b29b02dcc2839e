package deepzoom

import (
	"sort"

	"github.com/google/hilbert"

	"github.com/tilevista/go-deepzoom/tile"
)

// coarserBand is how many levels below the chosen one are also requested,
// so a lower-resolution image is available while the finest level streams
// in.
const coarserBand = 2

// VisibleTiles chooses the resolution level band for a view rectangle in
// full-resolution image coordinates and enumerates the covering tile keys,
// coarsest level first. The display size is in destination pixels; when
// zero, full resolution is assumed.
//
// The order is deterministic: within a level, tiles follow a Hilbert curve
// over the level grid, so neighbouring tiles stay adjacent in fetch order.
func (img *Image) VisibleTiles(x, y, w, h float64, displayWidth, displayHeight int) []tile.Key {
	scale := 1.0
	if displayWidth > 0 && displayHeight > 0 && w > 0 && h > 0 {
		scale = (float64(displayWidth)/w + float64(displayHeight)/h) / 2
	}

	stop := img.desc.ChooseLevel(scale, img.levelThreshold())
	start := max(0, stop-coarserBand)

	var keys []tile.Key
	for level := start; level <= stop; level++ {
		keys = append(keys, img.levelTiles(x, y, w, h, level)...)
	}
	return keys
}

func (img *Image) levelTiles(x, y, w, h float64, level int) []tile.Key {
	maxCol, maxRow := img.desc.MaxTileIndex(level)
	col0, row0 := img.desc.TileIndex(x, y, level)
	col1, row1 := img.desc.TileIndex(x+w, y+h, level)

	col0, row0 = max(col0, 0), max(row0, 0)
	col1, row1 = min(col1, maxCol), min(row1, maxRow)
	if col1 < col0 || row1 < row0 {
		return nil
	}

	keys := make([]tile.Key, 0, (col1-col0+1)*(row1-row0+1))
	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			keys = append(keys, tile.Key{Level: level, Col: col, Row: row})
		}
	}
	sortHilbert(keys, max(maxCol, maxRow)+1)
	return keys
}

// sortHilbert orders keys along a Hilbert curve over the smallest
// power-of-two grid covering the level.
func sortHilbert(keys []tile.Key, gridSize int) {
	n := 1
	for n < gridSize {
		n *= 2
	}
	hc, err := hilbert.NewHilbert(n)
	if err != nil {
		// Grid too large to index; row-major enumeration is already
		// deterministic.
		return
	}

	index := make(map[tile.Key]int, len(keys))
	for _, k := range keys {
		d, err := hc.MapInverse(k.Col, k.Row)
		if err != nil {
			return
		}
		index[k] = d
	}
	sort.Slice(keys, func(i, j int) bool {
		return index[keys[i]] < index[keys[j]]
	})
}
