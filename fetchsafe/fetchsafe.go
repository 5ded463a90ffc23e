// Package fetchsafe guards URLs and bodies that come from configuration or
// the command line: scheme checks and bounded reads.
package fetchsafe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// MaxPageBody caps a saved or fetched page read by the static extractor.
const MaxPageBody int64 = 8 << 20

// ErrUnsafeScheme is returned when a URL is not http or https.
var ErrUnsafeScheme = errors.New("fetchsafe: only http and https schemes are allowed")

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("fetchsafe: body too large")

// IsHTTPURL reports whether s looks like an http(s) URL rather than a path.
func IsHTTPURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// CheckURL parses rawURL and requires an http(s) scheme and a host.
func CheckURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetchsafe: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("fetchsafe: URL %q has no host", rawURL)
	}
	return u, nil
}

// LimitedReadAll reads at most maxBytes from r.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
