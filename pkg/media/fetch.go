// Package media downloads and stores attachment payloads exchanged with the
// messaging platform.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxSize caps downloads when no per-account limit is configured.
const DefaultMaxSize = 20 * 1024 * 1024

// Fetched is a downloaded attachment held in memory before saving.
type Fetched struct {
	Data     []byte
	MIME     string
	Filename string
}

// Fetcher downloads attachment content from platform CDN URLs.
type Fetcher struct {
	httpClient *http.Client
	maxSize    int64
}

// NewFetcher creates a Fetcher with the given size cap in bytes. A
// non-positive cap falls back to DefaultMaxSize.
func NewFetcher(maxSize int64) *Fetcher {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxSize:    maxSize,
	}
}

// Fetch downloads the content behind a platform URL. Downloads exceeding the
// size cap fail rather than truncate. The MIME type is sniffed from content,
// not trusted from headers.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("attachment size %d exceeds limit %d", resp.ContentLength, f.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("attachment exceeds size limit %d", f.maxSize)
	}

	return &Fetched{
		Data:     data,
		MIME:     mimetype.Detect(data).String(),
		Filename: filenameFromURL(rawURL),
	}, nil
}

// filenameFromURL extracts a usable base name from a CDN URL, ignoring query
// noise. Returns empty when the path carries no name.
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !strings.Contains(name, ".") {
		return ""
	}
	return name
}
