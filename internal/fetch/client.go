package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/resilience"
)

// ErrHostUnavailable is returned while a host's circuit breaker is open
var ErrHostUnavailable = errors.New("host unavailable: circuit breaker open")

// StatusError reports a non-success HTTP status
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// callerGoneError marks a request abandoned because its context ended
type callerGoneError struct {
	err error
}

func (e *callerGoneError) Error() string { return e.err.Error() }

func (e *callerGoneError) Unwrap() error { return e.err }

// Response is a fully read response body
type Response struct {
	// URL is the final address after redirects
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Options configures a Client
type Options struct {
	Timeout      time.Duration
	Retries      int
	MaxRedirects int
	UserAgent    string
	// RequestsPerSecond limits all outbound requests, 0 = unlimited
	RequestsPerSecond float64
	MaxBodyBytes      int64
	Logger            *zap.Logger
}

// DefaultOptions returns options matching a desktop browser fetching icons
func DefaultOptions() Options {
	return Options{
		Timeout:      10 * time.Second,
		Retries:      1,
		MaxRedirects: 5,
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64)",
		MaxBodyBytes: 5 << 20,
	}
}

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	hosts   *resilience.Group
	logger  *zap.Logger
}

// New creates a fetch client
func New(opts Options) *Client {
	logger := logging.OrNop(opts.Logger)

	// retryablehttp supplies the pooled transport and the retry policy
	// (connection errors, 429 and 5xx, never certificate errors)
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects)).
		SetHeader("User-Agent", opts.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			var raw *http.Response
			ctx := context.Background()
			if r != nil {
				raw = r.RawResponse
				if r.Request != nil {
					ctx = r.Request.Context()
				}
			}
			retry, _ := retryablehttp.DefaultRetryPolicy(ctx, raw, err)
			return retry
		})
	if opts.MaxBodyBytes > 0 {
		restyClient.SetResponseBodyLimit(int(opts.MaxBodyBytes))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	hosts := resilience.NewGroup("fetch", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A site answering 404 for /favicon.ico is healthy
		IsSuccessful: func(err error) bool {
			var status *StatusError
			if errors.As(err, &status) {
				return status.Code < http.StatusInternalServerError
			}
			return err == nil
		},
		// The caller canceling or timing out says nothing about the host
		IsExcluded: func(err error) bool {
			var gone *callerGoneError
			return errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("Host breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		hosts:   hosts,
		logger:  logger,
	}
}

// Head performs an existence check without transferring a body.
// It returns nil only for a 2xx answer.
func (c *Client) Head(ctx context.Context, rawURL string) error {
	_, err := c.do(ctx, http.MethodHead, rawURL)
	return err
}

// Get retrieves a resource. Non-2xx answers are returned as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL)
}

// HostStates reports the breaker state of every host contacted so far
func (c *Client) HostStates() map[string]resilience.State {
	return c.hosts.States()
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid fetch url %q", rawURL)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var out *Response
	err = c.hosts.Get(u.Host).Do(func() error {
		resp, err := c.resty.R().SetContext(ctx).Execute(method, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return &callerGoneError{err: fmt.Errorf("%s %s: %w", method, rawURL, ctx.Err())}
			}
			return fmt.Errorf("%s %s: %w", method, rawURL, err)
		}
		if !resp.IsSuccess() {
			return &StatusError{URL: rawURL, Code: resp.StatusCode()}
		}

		final := rawURL
		if resp.RawResponse != nil && resp.RawResponse.Request != nil {
			final = resp.RawResponse.Request.URL.String()
		}
		out = &Response{
			URL:         final,
			StatusCode:  resp.StatusCode(),
			ContentType: resp.Header().Get("Content-Type"),
			Body:        resp.Body(),
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s", ErrHostUnavailable, u.Host)
	}
	if err != nil {
		c.logger.Debug("Fetch failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, err
	}
	return out, nil
}
