package source_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilevista/go-deepzoom/bytecache"
	"github.com/tilevista/go-deepzoom/source"
	"github.com/tilevista/go-deepzoom/tile"
)

func TestIsURL(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"http://example.com/sample.dzi", true},
		{"https://example.com/pyramids/sample.dzi", true},
		{"/data/sample.dzi", false},
		{"sample.dzi", false},
		{"ftp://example.com/sample.dzi", false},
		{"C:/data/sample.dzi", false},
	}
	for _, tc := range cases {
		if got := source.IsURL(tc.src); got != tc.want {
			t.Errorf("IsURL(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestFilesBase(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"/data/sample.dzi", "/data/sample_files"},
		{"/data/sample.xml", "/data/sample_files"},
		{"sample.dzi", "sample_files"},
		{"http://example.com/p/sample.dzi", "http://example.com/p/sample_files"},
		{"noext", "noext_files"},
	}
	for _, tc := range cases {
		if got := source.FilesBase(tc.src); got != tc.want {
			t.Errorf("FilesBase(%q) = %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	levelDir := filepath.Join(dir, "sample_files", "7")
	require.NoError(t, os.MkdirAll(levelDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(levelDir, "2_3.png"), []byte("tile bytes"), 0644))

	s := source.NewFileSource(filepath.Join(dir, "sample.dzi"), "png")

	key := tile.Key{Level: 7, Col: 2, Row: 3}
	require.Equal(t, filepath.Join(dir, "sample_files", "7", "2_3.png"), s.TilePath(key))

	data, err := s.FetchTile(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("tile bytes"), data)

	_, err = s.FetchTile(context.Background(), tile.Key{Level: 7, Col: 9, Row: 9})
	require.ErrorIs(t, err, source.ErrNotFound)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pyramids/sample_files/7/2_3.jpg" {
			fmt.Fprint(w, "tile bytes")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := source.NewHTTPSource(srv.URL+"/pyramids/sample.dzi", "jpg", nil)

	key := tile.Key{Level: 7, Col: 2, Row: 3}
	require.Equal(t, srv.URL+"/pyramids/sample_files/7/2_3.jpg", s.TileURL(key))

	data, err := s.FetchTile(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("tile bytes"), data)

	_, err = s.FetchTile(context.Background(), tile.Key{Level: 7, Col: 9, Row: 9})
	require.ErrorIs(t, err, source.ErrTransport)
}

func TestHTTPSourceConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections

	s := source.NewHTTPSource(srv.URL+"/sample.dzi", "jpg", nil)
	_, err := s.FetchTile(context.Background(), tile.Key{Level: 0, Col: 0, Row: 0})
	require.ErrorIs(t, err, source.ErrTransport)
}

func TestNewPicksFetcher(t *testing.T) {
	_, ok := source.New("http://example.com/sample.dzi", "jpg", nil).(*source.HTTPSource)
	require.True(t, ok)

	_, ok = source.New("/data/sample.dzi", "jpg", nil).(*source.FileSource)
	require.True(t, ok)
}

func TestReadDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.dzi")
	require.NoError(t, os.WriteFile(path, []byte("<Image/>"), 0644))

	data, err := source.ReadDescriptor(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("<Image/>"), data)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sample.dzi" {
			fmt.Fprint(w, "<Image/>")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	data, err = source.ReadDescriptor(context.Background(), srv.URL+"/sample.dzi", nil)
	require.NoError(t, err)
	require.Equal(t, []byte("<Image/>"), data)

	_, err = source.ReadDescriptor(context.Background(), srv.URL+"/missing.dzi", nil)
	require.ErrorIs(t, err, source.ErrTransport)
}

// countingFetcher records how many times the backing store is hit.
type countingFetcher struct {
	n    atomic.Int64
	err  error
	data []byte
}

func (f *countingFetcher) FetchTile(context.Context, tile.Key) ([]byte, error) {
	f.n.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestCachedFetcher(t *testing.T) {
	backing := &countingFetcher{data: []byte("tile bytes")}
	s := source.WithCache(backing, bytecache.NewMapCache(), nil)

	key := tile.Key{Level: 5, Col: 1, Row: 2}
	data, err := s.FetchTile(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("tile bytes"), data)
	require.EqualValues(t, 1, backing.n.Load())

	// Second fetch is served from the byte cache.
	data, err = s.FetchTile(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, []byte("tile bytes"), data)
	require.EqualValues(t, 1, backing.n.Load())

	// A different key misses and hits the backing store.
	_, err = s.FetchTile(context.Background(), tile.Key{Level: 5, Col: 0, Row: 0})
	require.NoError(t, err)
	require.EqualValues(t, 2, backing.n.Load())
}

func TestCachedFetcherPropagatesErrors(t *testing.T) {
	backing := &countingFetcher{err: fmt.Errorf("%w: gone", source.ErrNotFound)}
	s := source.WithCache(backing, bytecache.NewMapCache(), nil)

	_, err := s.FetchTile(context.Background(), tile.Key{Level: 1, Col: 0, Row: 0})
	require.ErrorIs(t, err, source.ErrNotFound)
	require.EqualValues(t, 1, backing.n.Load())
}
