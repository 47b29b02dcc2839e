package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/tilevista/go-deepzoom/dzi"
	"github.com/tilevista/go-deepzoom/source"
)

type infoCmd struct {
	sourcePath string
}

func (c *infoCmd) Name() string     { return "info" }
func (c *infoCmd) Synopsis() string { return "print pyramid descriptor and level geometry" }
func (c *infoCmd) Usage() string {
	return "dzutils info -i <dzi path or url>\n"
}
func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sourcePath, "i", "", "Descriptor path or URL")
}

func (c *infoCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.sourcePath == "" {
		log.Println("missing -i descriptor path")
		return subcommands.ExitUsageError
	}

	raw, err := source.ReadDescriptor(ctx, c.sourcePath, nil)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	desc, err := dzi.Parse(raw)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("source:    %v\n", c.sourcePath)
	fmt.Printf("size:      %vx%v\n", desc.Width, desc.Height)
	fmt.Printf("tile size: %v (overlap %v)\n", desc.TileSize, desc.Overlap)
	fmt.Printf("format:    %v\n", desc.Format)
	if desc.PixelsPerMeter != 0 {
		fmt.Printf("scale:     %v px/m\n", desc.PixelsPerMeter)
	}
	fmt.Printf("levels:    0..%v\n\n", desc.MaxLevel())

	total := 0
	for level := 0; level <= desc.MaxLevel(); level++ {
		maxCol, maxRow := desc.MaxTileIndex(level)
		count := (maxCol + 1) * (maxRow + 1)
		total += count
		fmt.Printf("level %2d: scale %10.6f, grid %4dx%-4d (%d tiles)\n",
			level, desc.LevelScale(level), maxCol+1, maxRow+1, count)
	}
	fmt.Printf("\ntotal tiles: %v\n", total)

	return subcommands.ExitSuccess
}
