package dzi_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tilevista/go-deepzoom/dzi"
	"github.com/tilevista/go-deepzoom/tile"
)

const sampleXML = `<?xml version="1.0" encoding="utf-8"?>
<Image TileSize="254" Overlap="1" Format="jpg" xmlns="http://schemas.microsoft.com/deepzoom/2008">
  <Size Width="4000" Height="3000"/>
  <Scale PixelsPerMeter="5000"/>
</Image>`

func TestParse(t *testing.T) {
	d, err := dzi.Parse([]byte(sampleXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got, want := d.Width, 4000; got != want {
		t.Errorf("Width = %v, want %v", got, want)
	}
	if got, want := d.Height, 3000; got != want {
		t.Errorf("Height = %v, want %v", got, want)
	}
	if got, want := d.TileSize, 254; got != want {
		t.Errorf("TileSize = %v, want %v", got, want)
	}
	if got, want := d.Overlap, 1; got != want {
		t.Errorf("Overlap = %v, want %v", got, want)
	}
	if got, want := d.Format, "jpg"; got != want {
		t.Errorf("Format = %v, want %v", got, want)
	}
	if got, want := d.PixelsPerMeter, 5000.0; got != want {
		t.Errorf("PixelsPerMeter = %v, want %v", got, want)
	}
	if got, want := d.MaxLevel(), 12; got != want {
		t.Errorf("MaxLevel() = %v, want %v", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"not xml": "tile data, definitely not xml",
		"missing tile size": `<Image Overlap="1" Format="jpg">
			<Size Width="100" Height="100"/></Image>`,
		"missing overlap": `<Image TileSize="254" Format="jpg">
			<Size Width="100" Height="100"/></Image>`,
		"missing format": `<Image TileSize="254" Overlap="1">
			<Size Width="100" Height="100"/></Image>`,
		"missing size element": `<Image TileSize="254" Overlap="1" Format="jpg"></Image>`,
		"non-numeric width": `<Image TileSize="254" Overlap="1" Format="jpg">
			<Size Width="wide" Height="100"/></Image>`,
		"zero width": `<Image TileSize="254" Overlap="1" Format="jpg">
			<Size Width="0" Height="100"/></Image>`,
		"negative overlap": `<Image TileSize="254" Overlap="-1" Format="jpg">
			<Size Width="100" Height="100"/></Image>`,
		"non-numeric scale": `<Image TileSize="254" Overlap="1" Format="jpg">
			<Size Width="100" Height="100"/><Scale PixelsPerMeter="tiny"/></Image>`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := dzi.Parse([]byte(doc))
			if !errors.Is(err, dzi.ErrInvalidDescriptor) {
				t.Errorf("Parse error = %v, want ErrInvalidDescriptor", err)
			}
			if d != nil {
				t.Errorf("Parse returned partial descriptor %+v", d)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	d, err := dzi.New(4000, 3000, 254, 1, "jpg")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	d.PixelsPerMeter = 5000

	data, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := dzi.Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) failed: %v", err)
	}

	if diff := cmp.Diff(d, got, cmp.AllowUnexported(dzi.Descriptor{})); diff != "" {
		t.Errorf("round-trip mismatch (-want+got):\n%v", diff)
	}
}

func TestLevelScale(t *testing.T) {
	d, err := dzi.New(4000, 3000, 254, 1, "jpg")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got, want := d.LevelScale(d.MaxLevel()), 1.0; got != want {
		t.Errorf("LevelScale(maxLevel) = %v, want %v", got, want)
	}
	if got, want := d.LevelScale(0), math.Ldexp(1, -d.MaxLevel()); got != want {
		t.Errorf("LevelScale(0) = %v, want %v", got, want)
	}
	for level := 1; level <= d.MaxLevel(); level++ {
		if got, want := d.LevelScale(level), 2*d.LevelScale(level-1); got != want {
			t.Errorf("LevelScale(%v) = %v, want %v", level, got, want)
		}
	}
}

func TestMaxTileIndex(t *testing.T) {
	d, err := dzi.New(4000, 3000, 254, 1, "jpg")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	maxCol, maxRow := d.MaxTileIndex(12)
	if got, want := maxCol, 15; got != want {
		t.Errorf("MaxTileIndex(12) col = %v, want %v", got, want)
	}
	if got, want := maxRow, 11; got != want {
		t.Errorf("MaxTileIndex(12) row = %v, want %v", got, want)
	}

	// Level 0 is the single-tile representation.
	maxCol, maxRow = d.MaxTileIndex(0)
	if maxCol != 0 || maxRow != 0 {
		t.Errorf("MaxTileIndex(0) = (%v, %v), want (0, 0)", maxCol, maxRow)
	}
}

func TestTileIndexRoundTrip(t *testing.T) {
	d, err := dzi.New(1000, 800, 254, 1, "png")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for level := 0; level <= d.MaxLevel(); level++ {
		maxCol, maxRow := d.MaxTileIndex(level)
		for row := 0; row <= maxRow; row++ {
			for col := 0; col <= maxCol; col++ {
				x, y := d.TileOrigin(col, row, level)
				gotCol, gotRow := d.TileIndex(x, y, level)
				if gotCol != col || gotRow != row {
					t.Fatalf("TileIndex(TileOrigin(%v,%v,L%v)) = (%v,%v)", col, row, level, gotCol, gotRow)
				}

				// A point inside the tile's rect maps back to the tile.
				r := d.TileRect(tile.Key{Level: level, Col: col, Row: row})
				gotCol, gotRow = d.TileIndex(r.X+0.5, r.Y+0.5, level)
				if gotCol != col || gotRow != row {
					t.Fatalf("TileIndex inside rect of (%v,%v,L%v) = (%v,%v)", col, row, level, gotCol, gotRow)
				}
			}
		}
	}
}

func TestTileRect(t *testing.T) {
	d, err := dzi.New(1000, 800, 254, 1, "png")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	level := d.MaxLevel() // scale 1.0

	// Interior tile: full edge length plus overlap.
	r := d.TileRect(tile.Key{Level: level, Col: 0, Row: 0})
	want := tile.Rect{X: 0, Y: 0, W: 255, H: 255}
	if !cmp.Equal(r, want) {
		t.Errorf("TileRect(0,0) = %+v, want %+v", r, want)
	}

	// Edge tile: clipped at the image bounds.
	maxCol, maxRow := d.MaxTileIndex(level)
	r = d.TileRect(tile.Key{Level: level, Col: maxCol, Row: maxRow})
	want = tile.Rect{X: 762, Y: 762, W: 1000 - 762, H: 800 - 762}
	if !cmp.Equal(r, want) {
		t.Errorf("TileRect(max,max) = %+v, want %+v", r, want)
	}
}

func TestChooseLevel(t *testing.T) {
	d, err := dzi.New(4000, 3000, 254, 1, "jpg")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cases := []struct {
		scale     float64
		threshold float64
		want      int
	}{
		{1.0, 0, 12},
		{0.5, 0, 11},
		{0.25, 0, 10},
		{0.5, 1, 12},    // positive threshold prefers finer levels
		{1e-12, 0, 0},   // clamped at the coarsest level
		{1000.0, 0, 12}, // clamped at full resolution
	}
	for _, tc := range cases {
		if got := d.ChooseLevel(tc.scale, tc.threshold); got != tc.want {
			t.Errorf("ChooseLevel(%v, %v) = %v, want %v", tc.scale, tc.threshold, got, tc.want)
		}
	}
}
