// Package storage persists normalized icon bytes per application.
//
// Three implementations share the Store contract: Disk writes
// <dir>/icons/<appId>.png with atomic replace, Memory keeps bytes in a map
// for tests and ephemeral runs, and Cached puts an ARC cache in front of
// any other store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/shared/paths"
)

// ErrNotFound is returned by Load when no bytes are stored for an app
var ErrNotFound = errors.New("icon not stored")

// ErrInvalidAppID is returned for ids that cannot be used as a file name
var ErrInvalidAppID = errors.New("invalid app id")

// Store is byte-level icon persistence keyed by application id
type Store interface {
	Load(ctx context.Context, appID string) ([]byte, error)
	Save(ctx context.Context, appID string, data []byte) error
	Delete(ctx context.Context, appID string) error
}

// ValidateAppID rejects ids that cannot be used as an icon file name
func ValidateAppID(appID string) error {
	if err := paths.ValidateAppID(appID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAppID, err)
	}
	return nil
}
