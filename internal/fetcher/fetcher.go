package fetcher

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotFound reports that a remote source answered 404.
var ErrNotFound = eris.New("fetcher: remote source not found")

// Fetcher downloads remote source exports.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether a source location is an http(s) URL.
func IsRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
