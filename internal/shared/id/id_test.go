package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandleID(t *testing.T) {
	hid := NewHandleID()

	parts := strings.Split(hid.String(), "_")
	require.Len(t, parts, 2)
	assert.Equal(t, HandlePrefix, parts[0])
	_, err := ulid.ParseStrict(parts[1])
	assert.NoError(t, err)
}

func TestTimestamp(t *testing.T) {
	gen := NewGenerator()
	fixed := time.UnixMilli(1_700_000_000_123)
	gen.now = func() time.Time { return fixed }

	parts := strings.Split(gen.GenerateWithPrefix(HandlePrefix), "_")
	require.Len(t, parts, 2)
	parsed, err := ulid.ParseStrict(parts[1])
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), ulid.Time(parsed.Time()).UnixMilli())
}

func TestIDsSortInCreationOrder(t *testing.T) {
	gen := NewGenerator()
	// Same millisecond for every id, order comes from monotonic entropy.
	fixed := time.UnixMilli(1_700_000_000_000)
	gen.now = func() time.Time { return fixed }

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = gen.GenerateWithPrefix(HandlePrefix)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, goroutines*perGoroutine)
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s := gen.Generate().String()
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}
