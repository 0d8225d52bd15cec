/*
Package tracing provides lightweight request tracing for the icon API.

Each HTTP request gets a span whose trace ID is taken from the X-Trace-ID
header or generated. Handlers open child spans around icon operations so a
slow ensure can be followed from the request log to the resolution that
served it. Finished spans are written to the structured log by a single
collector goroutine.

# Usage

	tracer := tracing.New("icons", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "icon.ensure")
	defer tracer.End(span)
	span.SetTag("app_id", appID)

# Headers

	X-Trace-ID  identifier for the entire request flow
	X-Span-ID   identifier for the current operation
*/
package tracing
