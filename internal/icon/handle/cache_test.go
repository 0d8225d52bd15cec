package handle

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincent-petithory/dataurl"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
)

var png = []byte("\x89PNG\r\n\x1a\nfake")

func TestInstallPublishesLiveHandle(t *testing.T) {
	c := New(Options{})

	h := c.Install("app-1", png)
	require.NotNil(t, h)
	assert.Equal(t, "app-1", h.AppID())
	assert.NotEmpty(t, h.ID())
	assert.False(t, h.CreatedAt().IsZero())
	assert.False(t, h.Revoked())
	assert.Equal(t, png, h.Bytes())

	ref := h.DisplayRef()
	assert.True(t, strings.HasPrefix(ref, "data:image/png;base64,"), ref)
	decoded, err := dataurl.DecodeString(ref)
	require.NoError(t, err)
	assert.Equal(t, png, decoded.Data)

	got, ok := c.Get("app-1")
	require.True(t, ok)
	assert.Same(t, h, got)
	assert.Equal(t, 1, c.Len())
}

func TestInstallCopiesInput(t *testing.T) {
	data := append([]byte(nil), png...)
	h := New(Options{}).Install("app-1", data)

	data[0] = 0
	assert.Equal(t, png, h.Bytes())
}

func TestReplaceRevokesPrevious(t *testing.T) {
	c := New(Options{})

	first := c.Install("app-1", png)
	second := c.Install("app-1", []byte("other"))

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Less(t, first.ID(), second.ID(), "newer handles sort after the ones they replace")
	assert.True(t, first.Revoked())
	assert.Empty(t, first.DisplayRef())
	assert.Nil(t, first.Bytes())
	assert.False(t, second.Revoked())

	got, ok := c.Get("app-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, c.Len())
}

func TestEvict(t *testing.T) {
	c := New(Options{})
	h := c.Install("app-1", png)

	assert.True(t, c.Evict("app-1"))
	assert.True(t, h.Revoked())
	_, ok := c.Get("app-1")
	assert.False(t, ok)

	assert.False(t, c.Evict("app-1"))
	assert.False(t, c.Evict("never-installed"))
}

func TestRevokeIsIdempotent(t *testing.T) {
	h := newHandle("app-1", png)
	assert.True(t, h.revoke())
	assert.False(t, h.revoke())
	assert.True(t, h.Revoked())
}

func TestPurge(t *testing.T) {
	c := New(Options{})
	handles := []*Handle{
		c.Install("a", png),
		c.Install("b", png),
		c.Install("c", png),
	}

	assert.Equal(t, []string{"a", "b", "c"}, c.AppIDs())
	assert.Equal(t, 3, c.Purge())
	assert.Equal(t, 0, c.Len())
	for _, h := range handles {
		assert.True(t, h.Revoked())
	}
	assert.Equal(t, 0, c.Purge())
}

func TestObserverAndMetrics(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	c := New(Options{
		Metrics: metrics,
		Observer: func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})

	h1 := c.Install("app-1", png)
	h2 := c.Install("app-1", png)
	c.Install("app-2", png)
	c.Evict("app-1")

	require.Len(t, events, 4)
	assert.Equal(t, Event{Kind: EventInstalled, AppID: "app-1", HandleID: h1.ID()}, events[0])
	assert.Equal(t, Event{Kind: EventInstalled, AppID: "app-1", HandleID: h2.ID()}, events[1])
	assert.Equal(t, EventInstalled, events[2].Kind)
	assert.Equal(t, Event{Kind: EventEvicted, AppID: "app-1", HandleID: h2.ID()}, events[3])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HandlesLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Revocations))
}

func TestConcurrentInstallKeepsOneLiveHandle(t *testing.T) {
	c := New(Options{})

	const workers = 32
	results := make([]*Handle, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Install("app-1", []byte(fmt.Sprintf("icon-%d", i)))
		}(i)
	}
	wg.Wait()

	live, ok := c.Get("app-1")
	require.True(t, ok)

	liveCount := 0
	for _, h := range results {
		if !h.Revoked() {
			liveCount++
			assert.Same(t, live, h)
		}
	}
	assert.Equal(t, 1, liveCount)
	assert.Equal(t, 1, c.Len())
}
