// Package tile provides the common tile types shared by the pyramid packages.
package tile

import "context"

// Key addresses one tile of the pyramid. Level 0 is the coarsest
// (single-tile) representation; Col and Row index the level's tile grid.
type Key struct {
	Level int
	Col   int
	Row   int
}

// Rect is a tile placement rectangle in full-resolution image coordinates.
// W and H are clipped at the pyramid edges and include overlap elsewhere.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Payload is a decoded tile: 8-bit per channel RGBA, row-major, no row padding.
type Payload struct {
	Width  int
	Height int
	Pix    []byte
}

// Tile pairs a key with its placement rectangle and, once fetched, its
// decoded payload. The cache entry owns the Tile; renderers may read Rect
// and Data but must not mutate them or retain the Tile across cache
// mutations.
type Tile struct {
	Key  Key
	Rect Rect
	Data *Payload
}

// Available reports whether the decoded payload is present.
func (t *Tile) Available() bool {
	return t != nil && t.Data != nil
}

// Fetcher retrieves the raw (compressed) bytes for a tile key.
type Fetcher interface {
	FetchTile(ctx context.Context, key Key) ([]byte, error)
}
