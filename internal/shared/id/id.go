// Package id generates identifiers for display handles.
//
// Handle ids are prefixed ULIDs ("icon_01J..."): unique, readable in logs,
// and lexicographically ordered by creation time. Ids from one Generator
// are strictly increasing even within the same millisecond, so a newer
// handle for an app always sorts after the one it replaced.
package id

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// HandleID identifies a display handle
type HandleID string

func (id HandleID) String() string { return string(id) }

// HandlePrefix marks handle ids
const HandlePrefix = "icon"

// Generator generates monotonic ULIDs with optional prefixes
type Generator struct {
	entropyMu sync.Mutex // ulid.MonotonicEntropy is not safe for concurrent use
	entropy   *ulid.MonotonicEntropy
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewHandleID generates a new display handle id
func NewHandleID() HandleID {
	return HandleID(Default().GenerateWithPrefix(HandlePrefix))
}
