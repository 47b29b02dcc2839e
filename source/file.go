package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tilevista/go-deepzoom/tile"
)

// FileSource reads tiles from a local pyramid file tree.
type FileSource struct {
	base   string
	format string
}

var _ tile.Fetcher = (*FileSource)(nil)

// NewFileSource creates a source for the pyramid whose descriptor lives at
// src (e.g. "/data/sample.dzi" reads tiles from "/data/sample_files/").
func NewFileSource(src, format string) *FileSource {
	return &FileSource{base: FilesBase(src), format: format}
}

// TilePath resolves a key to its location in the file tree.
func (s *FileSource) TilePath(key tile.Key) string {
	return filepath.Join(s.base, strconv.Itoa(key.Level),
		fmt.Sprintf("%d_%d.%s", key.Col, key.Row, s.format))
}

func (s *FileSource) FetchTile(_ context.Context, key tile.Key) ([]byte, error) {
	data, err := os.ReadFile(s.TilePath(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, s.TilePath(key))
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
