package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

// Memory is a map-backed Store
type Memory struct {
	mu    sync.RWMutex
	icons map[string][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{icons: make(map[string][]byte)}
}

// Load implements Store
func (m *Memory) Load(ctx context.Context, appID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.icons[appID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, appID)
	}
	return bytes.Clone(data), nil
}

// Save implements Store
func (m *Memory) Save(ctx context.Context, appID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateAppID(appID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.icons[appID] = bytes.Clone(data)
	return nil
}

// Delete implements Store
func (m *Memory) Delete(ctx context.Context, appID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.icons, appID)
	return nil
}

// Len returns the number of stored icons
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.icons)
}
