package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
)

// FaviconPath is the conventional favicon location
const FaviconPath = "/favicon.ico"

// WellKnownPath checks for a favicon at the conventional path
type WellKnownPath struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewWellKnownPath creates the favicon probe
func NewWellKnownPath(f Fetcher, logger *zap.Logger) *WellKnownPath {
	return &WellKnownPath{fetcher: f, logger: logging.OrNop(logger)}
}

// Name implements Probe
func (p *WellKnownPath) Name() string { return "well-known-path" }

// Probe issues a HEAD request; any 2xx answer is a hit
func (p *WellKnownPath) Probe(ctx context.Context, base string) (string, bool) {
	u, err := NormalizeBase(base)
	if err != nil {
		p.logger.Debug("Invalid base url", zap.String("base", base), zap.Error(err))
		return "", false
	}

	candidate := atOrigin(u, FaviconPath)
	if err := p.fetcher.Head(ctx, candidate); err != nil {
		p.logger.Debug("No favicon at well-known path", zap.String("url", candidate), zap.Error(err))
		return "", false
	}
	return candidate, true
}
