// Package artifact fetches model and label artifacts at start-up from a local
// path, an http(s) URL or an s3://bucket/key object.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/logging"
)

var ErrNotFound = errors.New("artifact: not found")

// Loader resolves an artifact reference to its bytes.
type Loader struct {
	http *httpSource
	s3   S3Client
}

// Options configures the remote sources. A nil S3 client disables s3:// refs.
type Options struct {
	HTTPClient   HTTPDoer
	MaxRetries   int
	RetryBackoff time.Duration
	S3           S3Client
}

func NewLoader(opts Options) *Loader {
	return &Loader{
		http: newHTTPSource(opts.HTTPClient, opts.MaxRetries, opts.RetryBackoff),
		s3:   opts.S3,
	}
}

// Load returns the artifact bytes for ref.
func (l *Loader) Load(ctx context.Context, ref string) ([]byte, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	switch scheme(ref) {
	case "http", "https":
		data, err = l.http.fetch(ctx, ref)
	case "s3":
		if l.s3 == nil {
			return nil, fmt.Errorf("artifact: %s: no s3 client configured", ref)
		}
		data, err = fetchS3(ctx, l.s3, ref)
	default:
		data, err = readLocal(ref)
	}
	if err != nil {
		return nil, err
	}
	logging.Info(logging.CategoryArtifact, "loaded %s (%d bytes in %s)", ref, len(data), time.Since(start).Round(time.Millisecond))
	return data, nil
}

// Name returns the file name part of ref, used to pick a decoder by extension.
func Name(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return path.Base(u.Path)
	}
	return path.Base(strings.ReplaceAll(ref, "\\", "/"))
}

func scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}
