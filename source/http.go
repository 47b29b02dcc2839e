package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tilevista/go-deepzoom/tile"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPSource fetches tiles from a remote pyramid over HTTP(S). It applies
// no retry policy; retries happen implicitly when a later generation
// re-requests a key.
type HTTPSource struct {
	base   string
	format string
	client *http.Client
}

var _ tile.Fetcher = (*HTTPSource)(nil)

// NewHTTPSource creates a source for the pyramid whose descriptor lives at
// the src URL. A nil client gets a default with a transport timeout.
func NewHTTPSource(src, format string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPSource{base: FilesBase(src), format: format, client: client}
}

// TileURL resolves a key to its remote location.
func (s *HTTPSource) TileURL(key tile.Key) string {
	return fmt.Sprintf("%s/%d/%d_%d.%s", s.base, key.Level, key.Col, key.Row, s.format)
}

func (s *HTTPSource) FetchTile(ctx context.Context, key tile.Key) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.TileURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %v returned status %v", ErrTransport, s.TileURL(key), resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// New returns the fetcher matching the descriptor source: HTTP for URLs,
// the local file tree otherwise.
func New(src, format string, client *http.Client) tile.Fetcher {
	if IsURL(src) {
		return NewHTTPSource(src, format, client)
	}
	return NewFileSource(src, format)
}

// ReadDescriptor fetches the raw descriptor document itself from a local
// path or URL.
func ReadDescriptor(ctx context.Context, src string, client *http.Client) ([]byte, error) {
	if !IsURL(src) {
		return os.ReadFile(src)
	}

	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %v returned status %v", ErrTransport, src, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
