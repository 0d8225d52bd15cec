package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/fetch"
)

// site serves fixed bodies by path; unknown paths answer 404
func site(t *testing.T, pages map[string]page) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if p.contentType != "" {
			w.Header().Set("Content-Type", p.contentType)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(p.body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type page struct {
	contentType string
	body        string
}

func newFetcher() *fetch.Client {
	opts := fetch.DefaultOptions()
	opts.Retries = 0
	opts.Timeout = 2 * time.Second
	return fetch.New(opts)
}

func TestNormalizeBase(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://example.com", want: "https://example.com"},
		{in: "https://example.com/", want: "https://example.com"},
		{in: "  example.com/app// ", want: "https://example.com/app"},
		{in: "http://example.com:8080/x", want: "http://example.com:8080/x"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "ftp://example.com", wantErr: true},
		{in: "https://", wantErr: true},
		{in: "file:///etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := NormalizeBase(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestIconSize(t *testing.T) {
	tests := []struct {
		sizes string
		want  int
	}{
		{"192x192", 192},
		{"32x32", 32},
		{"16x16 48x48", 16},
		{" 64x64", 64},
		{"512", 512},
		{"any", -1},
		{"", -1},
		{"x32", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, iconSize(tt.sizes), tt.sizes)
	}
}

func TestLargestIcon(t *testing.T) {
	tests := []struct {
		name  string
		icons []manifestIcon
		want  string
		ok    bool
	}{
		{
			name:  "largest wins",
			icons: []manifestIcon{{"/s.png", "48x48"}, {"/l.png", "192x192"}, {"/m.png", "96x96"}},
			want:  "/l.png", ok: true,
		},
		{
			name:  "tie keeps first",
			icons: []manifestIcon{{"/first.png", "192x192"}, {"/second.png", "192x192"}},
			want:  "/first.png", ok: true,
		},
		{
			name:  "unsized ranks last",
			icons: []manifestIcon{{"/any.png", "any"}, {"/tiny.png", "1x1"}},
			want:  "/tiny.png", ok: true,
		},
		{
			name:  "only unsized takes first",
			icons: []manifestIcon{{"/a.png", ""}, {"/b.png", ""}},
			want:  "/a.png", ok: true,
		},
		{
			name:  "empty src ignored",
			icons: []manifestIcon{{"", "512x512"}, {"/b.png", "16x16"}},
			want:  "/b.png", ok: true,
		},
		{
			name:  "unfetchable src skipped",
			icons: []manifestIcon{{"data:image/png;base64,AAAA", "512x512"}, {"/http.png", "64x64"}},
			want:  "/http.png", ok: true,
		},
		{
			name:  "relative to manifest",
			icons: []manifestIcon{{"icons/a.png", "64x64"}},
			want:  "/icons/a.png", ok: true,
		},
		{name: "empty list"},
		{name: "no src", icons: []manifestIcon{{"", "512x512"}}},
		{name: "only unfetchable", icons: []manifestIcon{{"javascript:void(0)", "512x512"}}},
	}

	manifest, err := url.Parse("https://example.com/manifest.json")
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := largestIcon(manifest, tt.icons)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "https://example.com"+tt.want, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestWellKnownPath(t *testing.T) {
	hit := site(t, map[string]page{"/favicon.ico": {contentType: "image/x-icon"}})
	miss := site(t, nil)

	p := NewWellKnownPath(newFetcher(), nil)
	ctx := context.Background()

	got, ok := p.Probe(ctx, hit.URL+"/some/page/")
	assert.True(t, ok)
	assert.Equal(t, hit.URL+"/favicon.ico", got)

	_, ok = p.Probe(ctx, miss.URL)
	assert.False(t, ok)

	_, ok = p.Probe(ctx, "ftp://example.com")
	assert.False(t, ok)
}

func TestManifest(t *testing.T) {
	ctx := context.Background()

	t.Run("largest icon resolved against base", func(t *testing.T) {
		srv := site(t, map[string]page{
			"/manifest.json": {contentType: "application/json", body: `{
				"name": "Example",
				"icons": [
					{"src": "/small.png", "sizes": "32x32"},
					{"src": "/a.png", "sizes": "192x192"}
				]
			}`},
		})
		got, ok := NewManifest(newFetcher(), nil).Probe(ctx, srv.URL)
		assert.True(t, ok)
		assert.Equal(t, srv.URL+"/a.png", got)
	})

	t.Run("absolute src kept", func(t *testing.T) {
		srv := site(t, map[string]page{
			"/manifest.json": {body: `{"icons":[{"src":"https://cdn.example.com/i.png","sizes":"96x96"}]}`},
		})
		got, ok := NewManifest(newFetcher(), nil).Probe(ctx, srv.URL)
		assert.True(t, ok)
		assert.Equal(t, "https://cdn.example.com/i.png", got)
	})

	negatives := map[string]string{
		"invalid json": `{"icons": [`,
		"no icons":     `{"name": "x"}`,
		"empty icons":  `{"icons": []}`,
		"wrong type":   `{"icons": "icon.png"}`,
		"data src":     `{"icons":[{"src":"data:image/png;base64,AAAA","sizes":"64x64"}]}`,
	}
	for name, body := range negatives {
		t.Run(name, func(t *testing.T) {
			srv := site(t, map[string]page{"/manifest.json": {body: body}})
			_, ok := NewManifest(newFetcher(), nil).Probe(ctx, srv.URL)
			assert.False(t, ok)
		})
	}

	t.Run("missing manifest", func(t *testing.T) {
		srv := site(t, nil)
		_, ok := NewManifest(newFetcher(), nil).Probe(ctx, srv.URL)
		assert.False(t, ok)
	})
}

func TestMarkupLink(t *testing.T) {
	ctx := context.Background()
	const html = "text/html; charset=utf-8"

	tests := []struct {
		name string
		page page
		want string
		ok   bool
	}{
		{
			name: "apple touch icon preferred over earlier icon",
			page: page{html, `<html><head>
				<link rel="icon" href="/favicon-32.png">
				<link rel="apple-touch-icon" href="/touch.png">
			</head></html>`},
			want: "/touch.png", ok: true,
		},
		{
			name: "shortcut icon",
			page: page{html, `<html><head><link rel="Shortcut Icon" href="img/fav.ico"></head></html>`},
			want: "/img/fav.ico", ok: true,
		},
		{
			name: "precomposed counts as apple touch",
			page: page{html, `<link rel="icon" href="/a.png"><link rel="apple-touch-icon-precomposed" href="/b.png">`},
			want: "/b.png", ok: true,
		},
		{
			name: "first icon wins",
			page: page{html, `<link rel="icon" href="/one.png"><link rel="icon" href="/two.png">`},
			want: "/one.png", ok: true,
		},
		{
			name: "empty href skipped",
			page: page{html, `<link rel="apple-touch-icon" href=""><link rel="icon" href="/x.png">`},
			want: "/x.png", ok: true,
		},
		{
			name: "unrelated rel ignored",
			page: page{html, `<link rel="stylesheet" href="/site.css"><link rel="iconic" href="/no.png">`},
		},
		{
			name: "sniffed html without content type",
			page: page{"", `<!DOCTYPE html><html><head><link rel="icon" href="/s.png"></head></html>`},
			want: "/s.png", ok: true,
		},
		{
			name: "declared latin1",
			page: page{"text/html; charset=iso-8859-1", "<html><head><title>Caf\xe9</title><link rel=\"icon\" href=\"/l.png\"></head></html>"},
			want: "/l.png", ok: true,
		},
		{
			name: "json is not markup",
			page: page{"application/json", `{"link": "<link rel=\"icon\" href=\"/j.png\">"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := site(t, map[string]page{"/": tt.page})
			got, ok := NewMarkupLink(newFetcher(), nil).Probe(ctx, srv.URL)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, srv.URL+tt.want, got)
			}
		})
	}

	t.Run("relative href under a redirected directory", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", html)
			_, _ = w.Write([]byte(`<link rel="icon" href="icon.png">`))
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		// The mux redirects /app to /app/
		got, ok := NewMarkupLink(newFetcher(), nil).Probe(ctx, srv.URL+"/app/")
		require.True(t, ok)
		assert.Equal(t, srv.URL+"/app/icon.png", got)
	})

	t.Run("unreachable page", func(t *testing.T) {
		srv := site(t, nil)
		_, ok := NewMarkupLink(newFetcher(), nil).Probe(ctx, srv.URL)
		assert.False(t, ok)
	})
}

func TestDefaultsOrder(t *testing.T) {
	probes := Defaults(newFetcher(), nil)
	require.Len(t, probes, 3)
	assert.Equal(t, "well-known-path", probes[0].Name())
	assert.Equal(t, "manifest", probes[1].Name())
	assert.Equal(t, "markup-link", probes[2].Name())
}
