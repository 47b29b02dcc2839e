package bytecache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tilevista/go-deepzoom/tile"
)

// DirCache stores tile bytes as individual files under root, using the
// "{level}/{col}_{row}" layout of the pyramid itself.
type DirCache struct {
	root string
}

var _ Cache = (*DirCache)(nil)

func NewDirCache(root string) *DirCache {
	return &DirCache{root: root}
}

func (c *DirCache) path(k tile.Key) string {
	return filepath.Join(c.root, strconv.Itoa(k.Level), fmt.Sprintf("%d_%d", k.Col, k.Row))
}

func (c *DirCache) Get(k tile.Key) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(k))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *DirCache) Set(k tile.Key, data []byte) error {
	p := c.path(k)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}
