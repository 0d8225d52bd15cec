package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/fetch"
)

// Fetcher is the network capability probes depend on.
// *fetch.Client satisfies it.
type Fetcher interface {
	Head(ctx context.Context, rawURL string) error
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Probe is one remote icon source
type Probe interface {
	// Name identifies the probe in logs and metrics
	Name() string
	// Probe returns a candidate icon address for base, or false
	Probe(ctx context.Context, base string) (string, bool)
}

// Defaults returns the remote probes in priority order
func Defaults(f Fetcher, logger *zap.Logger) []Probe {
	return []Probe{
		NewWellKnownPath(f, logger),
		NewManifest(f, logger),
		NewMarkupLink(f, logger),
	}
}

// NormalizeBase trims surrounding whitespace and trailing slashes from raw
// and assumes https when no scheme is given. Only http and https URLs with a
// host are accepted.
func NormalizeBase(raw string) (*url.URL, error) {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	if s == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	return u, nil
}

// resolve makes ref absolute against base, keeping only fetchable results
func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(r)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

// atOrigin returns the absolute URL of path on base's origin
func atOrigin(base *url.URL, path string) string {
	u := url.URL{Scheme: base.Scheme, Host: base.Host, Path: path}
	return u.String()
}
