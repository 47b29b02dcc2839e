// Package dzi parses Deep Zoom image descriptors and derives the pyramid
// coordinate arithmetic from them: level scales, tile-grid bounds and tile
// placement rectangles in full-resolution image coordinates.
package dzi

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tilevista/go-deepzoom/tile"
)

// Namespace is the schema namespace written by deep zoom generators.
const Namespace = "http://schemas.microsoft.com/deepzoom/2008"

var ErrInvalidDescriptor = errors.New("deepzoom: invalid descriptor")

// Descriptor holds the parsed pyramid metadata. Treat it as read-only
// after construction.
type Descriptor struct {
	Width    int
	Height   int
	TileSize int
	Overlap  int
	Format   string

	// PixelsPerMeter is the optional physical scale; 0 when absent.
	PixelsPerMeter float64

	maxLevel int
}

// New validates the metadata fields and derives the level count.
func New(width, height, tileSize, overlap int, format string) (*Descriptor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image size %vx%v", ErrInvalidDescriptor, width, height)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %v", ErrInvalidDescriptor, tileSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %v", ErrInvalidDescriptor, overlap)
	}
	if format == "" {
		return nil, fmt.Errorf("%w: empty format", ErrInvalidDescriptor)
	}
	return &Descriptor{
		Width:    width,
		Height:   height,
		TileSize: tileSize,
		Overlap:  overlap,
		Format:   format,
		maxLevel: int(math.Ceil(math.Log2(float64(max(width, height))))),
	}, nil
}

type imageXML struct {
	XMLName  xml.Name  `xml:"Image"`
	TileSize string    `xml:"TileSize,attr"`
	Overlap  string    `xml:"Overlap,attr"`
	Format   string    `xml:"Format,attr"`
	Size     *sizeXML  `xml:"Size"`
	Scale    *scaleXML `xml:"Scale"`
}

type sizeXML struct {
	Width  string `xml:"Width,attr"`
	Height string `xml:"Height,attr"`
}

type scaleXML struct {
	PixelsPerMeter string `xml:"PixelsPerMeter,attr"`
}

// Parse extracts a Descriptor from DZI XML. Missing or non-numeric
// required fields fail with an error wrapping ErrInvalidDescriptor; no
// partial descriptor is returned.
func Parse(data []byte) (*Descriptor, error) {
	var doc imageXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	tileSize, err := requiredInt("TileSize", doc.TileSize)
	if err != nil {
		return nil, err
	}
	overlap, err := requiredInt("Overlap", doc.Overlap)
	if err != nil {
		return nil, err
	}
	if doc.Format == "" {
		return nil, fmt.Errorf("%w: missing Format attribute", ErrInvalidDescriptor)
	}
	if doc.Size == nil {
		return nil, fmt.Errorf("%w: missing Size element", ErrInvalidDescriptor)
	}
	width, err := requiredInt("Width", doc.Size.Width)
	if err != nil {
		return nil, err
	}
	height, err := requiredInt("Height", doc.Size.Height)
	if err != nil {
		return nil, err
	}

	d, err := New(width, height, tileSize, overlap, doc.Format)
	if err != nil {
		return nil, err
	}

	if doc.Scale != nil && doc.Scale.PixelsPerMeter != "" {
		ppm, err := strconv.ParseFloat(doc.Scale.PixelsPerMeter, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric PixelsPerMeter attribute %q",
				ErrInvalidDescriptor, doc.Scale.PixelsPerMeter)
		}
		d.PixelsPerMeter = ppm
	}

	return d, nil
}

func requiredInt(name, value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: missing %v attribute", ErrInvalidDescriptor, name)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric %v attribute %q", ErrInvalidDescriptor, name, value)
	}
	return n, nil
}

type imageOutXML struct {
	XMLName  xml.Name     `xml:"Image"`
	Xmlns    string       `xml:"xmlns,attr"`
	TileSize int          `xml:"TileSize,attr"`
	Overlap  int          `xml:"Overlap,attr"`
	Format   string       `xml:"Format,attr"`
	Size     sizeOutXML   `xml:"Size"`
	Scale    *scaleOutXML `xml:"Scale,omitempty"`
}

type sizeOutXML struct {
	Width  int `xml:"Width,attr"`
	Height int `xml:"Height,attr"`
}

type scaleOutXML struct {
	PixelsPerMeter float64 `xml:"PixelsPerMeter,attr"`
}

// Marshal writes the descriptor back out as DZI XML. The result parses
// to an identical descriptor.
func (d *Descriptor) Marshal() ([]byte, error) {
	doc := imageOutXML{
		Xmlns:    Namespace,
		TileSize: d.TileSize,
		Overlap:  d.Overlap,
		Format:   d.Format,
		Size:     sizeOutXML{Width: d.Width, Height: d.Height},
	}
	if d.PixelsPerMeter != 0 {
		doc.Scale = &scaleOutXML{PixelsPerMeter: d.PixelsPerMeter}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

// MaxLevel is the full-resolution level: ceil(log2(max(width, height))).
func (d *Descriptor) MaxLevel() int {
	return d.maxLevel
}

// LevelScale returns 2^(level - maxLevel): 1.0 at full resolution, halving
// per coarser level.
func (d *Descriptor) LevelScale(level int) float64 {
	return math.Ldexp(1, level-d.maxLevel)
}

// MaxTileIndex returns the largest valid column and row at level.
func (d *Descriptor) MaxTileIndex(level int) (maxCol, maxRow int) {
	scale := d.LevelScale(level)
	maxCol = int(math.Floor(float64(d.Width-1) * scale / float64(d.TileSize)))
	maxRow = int(math.Floor(float64(d.Height-1) * scale / float64(d.TileSize)))
	return maxCol, maxRow
}

// TileIndex maps a full-resolution image point to the tile indices
// containing it at level. Results are unclamped and may fall outside the
// grid for out-of-image points.
func (d *Descriptor) TileIndex(x, y float64, level int) (col, row int) {
	scale := d.LevelScale(level)
	col = int(math.Floor(x * scale / float64(d.TileSize)))
	row = int(math.Floor(y * scale / float64(d.TileSize)))
	return col, row
}

// TileOrigin is the inverse of TileIndex: the full-resolution coordinates
// of the tile's origin.
func (d *Descriptor) TileOrigin(col, row, level int) (x, y float64) {
	scale := d.LevelScale(level)
	x = float64(col) * float64(d.TileSize) / scale
	y = float64(row) * float64(d.TileSize) / scale
	return x, y
}

// TileRect computes the tile's placement rectangle in full-resolution
// coordinates, inflated by the overlap and clipped at the pyramid edges.
func (d *Descriptor) TileRect(key tile.Key) tile.Rect {
	scale := d.LevelScale(key.Level)
	x, y := d.TileOrigin(key.Col, key.Row, key.Level)
	edge := float64(d.TileSize+d.Overlap) / scale
	return tile.Rect{
		X: x,
		Y: y,
		W: math.Min(float64(d.Width)-x, edge),
		H: math.Min(float64(d.Height)-y, edge),
	}
}

// ChooseLevel picks the resolution level for a display scale (destination
// pixels per source pixel). Threshold biases the switch point: positive
// values select finer levels earlier. The result is clamped to
// [0, maxLevel].
func (d *Descriptor) ChooseLevel(displayScale, threshold float64) int {
	level := int(math.Ceil(float64(d.maxLevel) + threshold + math.Log2(displayScale)))
	return min(max(level, 0), d.maxLevel)
}
