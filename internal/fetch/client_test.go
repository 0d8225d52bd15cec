package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/resilience"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retries = 0
	opts.Timeout = 2 * time.Second
	return opts
}

func TestHead(t *testing.T) {
	var bodyRequested atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			bodyRequested.Store(true)
		}
		switch r.URL.Path {
		case "/favicon.ico":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(testOptions())
	ctx := context.Background()

	assert.NoError(t, c.Head(ctx, srv.URL+"/favicon.ico"))

	err := c.Head(ctx, srv.URL+"/missing.ico")
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusNotFound, status.Code)

	assert.False(t, bodyRequested.Load(), "existence check must use HEAD")
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/page", http.StatusFound)
		case "/page":
			assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(testOptions())

	resp, err := c.Get(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/page", resp.URL)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Equal(t, "<html></html>", string(resp.Body))
}

func TestGetRejectsInvalidURL(t *testing.T) {
	c := New(testOptions())

	for _, raw := range []string{"", "example.com/x", "ftp://example.com/x", "://"} {
		_, err := c.Get(context.Background(), raw)
		assert.Error(t, err, raw)
	}
}

func TestRedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.MaxRedirects = 2
	c := New(opts)

	_, err := c.Get(context.Background(), srv.URL+"/a")
	assert.Error(t, err)
}

func TestHostBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testOptions())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Get(ctx, srv.URL)
		require.Error(t, err)
	}

	_, err := c.Get(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.Equal(t, int32(5), hits.Load(), "open breaker must not reach the host")

	states := c.HostStates()
	assert.Len(t, states, 1)
	for _, state := range states {
		assert.Equal(t, resilience.StateOpen, state)
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(testOptions())
	for i := 0; i < 10; i++ {
		err := c.Head(context.Background(), srv.URL+"/favicon.ico")
		var status *StatusError
		require.ErrorAs(t, err, &status)
	}
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(testOptions())
	assert.Error(t, c.Head(ctx, srv.URL))
}

func TestCallerCancellationDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			<-r.Context().Done()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(testOptions())
	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.Get(ctx, srv.URL+"/slow")
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	for _, state := range c.HostStates() {
		assert.Equal(t, resilience.StateClosed, state)
	}
	assert.NoError(t, c.Head(context.Background(), srv.URL))
}
