// Package fetch is the network capability used by the icon probes.
//
// Built on go-resty/resty with:
//   - hashicorp/go-retryablehttp pooled transport and retry policy
//   - golang.org/x/time/rate token bucket shared by all outbound requests
//   - one circuit breaker per remote host (internal/infrastructure/resilience)
//   - bounded redirects and response bodies
//
// Every non-2xx answer is an error (*StatusError); callers that treat a miss
// as a negative result only need to check err != nil.
//
// Example Usage:
//
//	client := fetch.New(fetch.DefaultOptions())
//	if err := client.Head(ctx, "https://example.com/favicon.ico"); err == nil {
//	    // icon exists
//	}
package fetch
