package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/fetch"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/probe"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/raster"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
)

// stub is a scripted probe that records whether it ran
type stub struct {
	name   string
	result string
	panics bool

	mu    sync.Mutex
	calls int
}

func (s *stub) Name() string { return s.name }

func (s *stub) Probe(_ context.Context, _ string) (string, bool) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	return s.result, s.result != ""
}

func (s *stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func stubs(results ...string) []*stub {
	names := []string{"well-known-path", "manifest", "markup-link"}
	out := make([]*stub, len(results))
	for i, r := range results {
		out[i] = &stub{name: names[i], result: r}
	}
	return out
}

func asProbes(ss []*stub) []probe.Probe {
	out := make([]probe.Probe, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func TestResolvePriority(t *testing.T) {
	tests := []struct {
		name       string
		results    []string
		wantOrigin icon.Source
		wantURL    string
		wantCalls  []int
	}{
		{
			name:       "first probe short-circuits",
			results:    []string{"https://x/favicon.ico", "https://x/m.png", "https://x/l.png"},
			wantOrigin: icon.SourceWellKnownPath,
			wantURL:    "https://x/favicon.ico",
			wantCalls:  []int{1, 0, 0},
		},
		{
			name:       "manifest after favicon miss",
			results:    []string{"", "https://x/m.png", "https://x/l.png"},
			wantOrigin: icon.SourceManifest,
			wantURL:    "https://x/m.png",
			wantCalls:  []int{1, 1, 0},
		},
		{
			name:       "markup last",
			results:    []string{"", "", "https://x/l.png"},
			wantOrigin: icon.SourceMarkupLink,
			wantURL:    "https://x/l.png",
			wantCalls:  []int{1, 1, 1},
		},
		{
			name:       "all miss rasterizes",
			results:    []string{"", "", ""},
			wantOrigin: icon.SourceRasterized,
			wantCalls:  []int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := stubs(tt.results...)
			c := New(asProbes(ss), nil, Options{})

			res := c.Resolve(context.Background(), "https://x", "Notes")
			assert.Equal(t, tt.wantOrigin, res.Origin)
			assert.Equal(t, tt.wantURL, res.SourceURL)
			if tt.wantOrigin == icon.SourceRasterized {
				assert.Equal(t, raster.Rasterize("Notes"), res.Bytes)
			} else {
				assert.Nil(t, res.Bytes)
			}
			for i, s := range ss {
				assert.Equal(t, tt.wantCalls[i], s.Calls(), s.name)
			}
		})
	}
}

func TestResolvePanickingProbeIsNegative(t *testing.T) {
	ss := stubs("https://x/favicon.ico", "https://x/m.png")
	ss[0].panics = true

	res := New(asProbes(ss), nil, Options{}).Resolve(context.Background(), "https://x", "Notes")
	assert.Equal(t, icon.SourceManifest, res.Origin)
	assert.Equal(t, "https://x/m.png", res.SourceURL)
}

func TestResolveNoProbes(t *testing.T) {
	res := New(nil, nil, Options{}).Resolve(context.Background(), "not a url", "zebra")
	assert.Equal(t, icon.SourceRasterized, res.Origin)
	assert.Equal(t, raster.Rasterize("Z"), res.Bytes)
}

func TestFallback(t *testing.T) {
	c := New(asProbes(stubs("https://x/favicon.ico")), raster.New(64), Options{})

	res := c.Fallback("Mail")
	assert.Equal(t, icon.SourceRasterized, res.Origin)
	assert.Empty(t, res.SourceURL)
	assert.Equal(t, raster.New(64).Rasterize("Mail"), res.Bytes)
}

func TestResolveRecordsProbeOutcomes(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	ss := stubs("", "https://x/m.png", "https://x/l.png")

	New(asProbes(ss), nil, Options{Metrics: metrics}).Resolve(context.Background(), "https://x", "Notes")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProbeOutcomes.WithLabelValues("well-known-path", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProbeOutcomes.WithLabelValues("manifest", "hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ProbeOutcomes.WithLabelValues("markup-link", "hit")))
}

// A site with no favicon and a manifest whose largest icon is /a.png
func TestResolveAgainstSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest.json":
			w.Header().Set("Content-Type", "application/manifest+json")
			_, _ = w.Write([]byte(`{"icons":[{"src":"/b.png","sizes":"32x32"},{"src":"/a.png","sizes":"192x192"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	opts := fetch.DefaultOptions()
	opts.Retries = 0
	opts.Timeout = 2 * time.Second
	c := New(probe.Defaults(fetch.New(opts), nil), nil, Options{})

	res := c.Resolve(context.Background(), srv.URL, "Example")
	require.Equal(t, icon.SourceManifest, res.Origin)
	assert.Equal(t, srv.URL+"/a.png", res.SourceURL)
}

func TestResolveUnreachableSite(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	opts := fetch.DefaultOptions()
	opts.Retries = 0
	opts.Timeout = 2 * time.Second
	c := New(probe.Defaults(fetch.New(opts), nil), nil, Options{})

	res := c.Resolve(context.Background(), srv.URL, "Notes")
	assert.Equal(t, icon.SourceRasterized, res.Origin)
	assert.Equal(t, raster.Rasterize("Notes"), res.Bytes)
}
