package icon

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable is returned by coordinator operations that could not
	// produce or persist an icon. Callers degrade to showing no icon.
	ErrUnavailable = errors.New("icon unavailable")

	// ErrInvalidBinding is returned when a binding lacks an id, url or name.
	ErrInvalidBinding = errors.New("invalid icon binding")

	// ErrInvalidImage is returned when supplied bytes are not a usable image.
	ErrInvalidImage = errors.New("invalid icon image")
)

// Source identifies where an icon came from
type Source string

const (
	SourceWellKnownPath Source = "well-known-path"
	SourceManifest      Source = "manifest"
	SourceMarkupLink    Source = "markup-link"
	SourceRasterized    Source = "rasterized"
	SourceUserSupplied  Source = "user-supplied"
)

// Remote reports whether the source yields an address that must be fetched.
func (s Source) Remote() bool {
	switch s {
	case SourceWellKnownPath, SourceManifest, SourceMarkupLink:
		return true
	default:
		return false
	}
}

// Result is the outcome of a resolution pass. Remote sources carry SourceURL,
// local ones (rasterized, user supplied) carry Bytes.
type Result struct {
	SourceURL string
	Bytes     []byte
	Origin    Source
}

// Binding is the slice of an application record the icon subsystem needs
type Binding struct {
	AppID string `json:"id"`
	URL   string `json:"url"`
	Name  string `json:"name"`
}

// Validate checks that every field is present. The name must be non-empty
// because it seeds the rasterized fallback.
func (b Binding) Validate() error {
	switch {
	case strings.TrimSpace(b.AppID) == "":
		return fmt.Errorf("%w: missing app id", ErrInvalidBinding)
	case strings.TrimSpace(b.URL) == "":
		return fmt.Errorf("%w: missing url for %s", ErrInvalidBinding, b.AppID)
	case strings.TrimSpace(b.Name) == "":
		return fmt.Errorf("%w: missing name for %s", ErrInvalidBinding, b.AppID)
	}
	return nil
}
