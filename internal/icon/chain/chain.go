// Package chain runs the icon probes in priority order and guarantees a
// result by falling back to a rasterized letter icon.
package chain

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/probe"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/raster"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
)

// Options configures a Chain
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Chain is an ordered list of probes followed by the rasterizer
type Chain struct {
	probes     []probe.Probe
	rasterizer raster.Rasterizer
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// New creates a chain. Probes run in slice order; a probe's Name is used as
// the origin of the result it produces.
func New(probes []probe.Probe, rasterizer raster.Rasterizer, opts Options) *Chain {
	if rasterizer == nil {
		rasterizer = raster.New(0)
	}
	return &Chain{
		probes:     probes,
		rasterizer: rasterizer,
		logger:     logging.OrNop(opts.Logger),
		metrics:    opts.Metrics,
	}
}

// Resolve returns the first probe hit for url, or the rasterized fallback
// for name. It never fails. name must be non-empty.
func (c *Chain) Resolve(ctx context.Context, url, name string) icon.Result {
	for _, p := range c.probes {
		candidate, ok := c.run(ctx, p, url)
		c.metrics.RecordProbe(p.Name(), ok)
		if ok {
			c.logger.Debug("Probe hit",
				zap.String("probe", p.Name()),
				zap.String("url", url),
				zap.String("candidate", candidate),
			)
			return icon.Result{SourceURL: candidate, Origin: icon.Source(p.Name())}
		}
	}

	c.logger.Info("No remote icon found, rasterizing", zap.String("url", url), zap.String("name", name))
	return c.Fallback(name)
}

// Fallback returns the rasterized result for name without probing
func (c *Chain) Fallback(name string) icon.Result {
	return icon.Result{Bytes: c.rasterizer.Rasterize(name), Origin: icon.SourceRasterized}
}

// run isolates a single probe; a panic counts as a negative result
func (c *Chain) run(ctx context.Context, p probe.Probe, url string) (candidate string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Probe panicked",
				zap.String("probe", p.Name()),
				zap.String("url", url),
				zap.String("panic", fmt.Sprint(r)),
			)
			candidate, ok = "", false
		}
	}()
	return p.Probe(ctx, url)
}
