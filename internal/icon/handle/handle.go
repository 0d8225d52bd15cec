// Package handle owns the live display assets for application icons.
//
// At most one live Handle exists per application. Installing a new one for
// an application revokes the previous handle, but only after the new handle
// is published, so a reader never observes an application without an icon
// during a replacement. Revoked handles release their bytes and report an
// empty display reference.
package handle

import (
	"bytes"
	"sync"
	"time"

	"github.com/vincent-petithory/dataurl"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/shared/id"
)

// Handle is a displayable icon asset bound to one application
type Handle struct {
	appID     string
	id        string
	createdAt time.Time

	mu         sync.RWMutex
	data       []byte
	displayRef string
	revoked    bool
}

func newHandle(appID string, data []byte) *Handle {
	data = bytes.Clone(data)
	return &Handle{
		appID:      appID,
		id:         id.NewHandleID().String(),
		createdAt:  time.Now(),
		data:       data,
		displayRef: dataurl.New(data, "image/png").String(),
	}
}

// AppID returns the owning application id
func (h *Handle) AppID() string { return h.appID }

// ID returns the unique handle id
func (h *Handle) ID() string { return h.id }

// CreatedAt returns the install time
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// DisplayRef returns a data URL usable as an image source, or "" once revoked
func (h *Handle) DisplayRef() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.displayRef
}

// Bytes returns the PNG bytes, or nil once revoked. Callers must not modify
// the returned slice.
func (h *Handle) Bytes() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data
}

// Revoked reports whether the handle has been released
func (h *Handle) Revoked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revoked
}

// revoke releases the asset. It reports false if the handle was already revoked.
func (h *Handle) revoke() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.revoked {
		return false
	}
	h.revoked = true
	h.data = nil
	h.displayRef = ""
	return true
}
