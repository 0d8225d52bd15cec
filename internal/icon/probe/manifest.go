package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
)

// ManifestPath is the conventional web app manifest location
const ManifestPath = "/manifest.json"

type manifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
}

type manifestDoc struct {
	Icons []manifestIcon `json:"icons"`
}

// Manifest picks the largest icon listed in the web app manifest
type Manifest struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewManifest creates the manifest probe
func NewManifest(f Fetcher, logger *zap.Logger) *Manifest {
	return &Manifest{fetcher: f, logger: logging.OrNop(logger)}
}

// Name implements Probe
func (p *Manifest) Name() string { return "manifest" }

// Probe fetches and parses the manifest
func (p *Manifest) Probe(ctx context.Context, base string) (string, bool) {
	u, err := NormalizeBase(base)
	if err != nil {
		p.logger.Debug("Invalid base url", zap.String("base", base), zap.Error(err))
		return "", false
	}

	manifestURL := atOrigin(u, ManifestPath)
	resp, err := p.fetcher.Get(ctx, manifestURL)
	if err != nil {
		p.logger.Debug("Manifest unavailable", zap.String("url", manifestURL), zap.Error(err))
		return "", false
	}

	var doc manifestDoc
	if err := sonic.Unmarshal(resp.Body, &doc); err != nil {
		p.logger.Debug("Manifest is not valid JSON", zap.String("url", manifestURL), zap.Error(err))
		return "", false
	}

	src, ok := largestIcon(u.ResolveReference(&url.URL{Path: ManifestPath}), doc.Icons)
	if !ok {
		p.logger.Debug("Manifest lists no fetchable icons", zap.String("url", manifestURL))
		return "", false
	}
	return src, true
}

// largestIcon returns the absolute address of the largest fetchable icon,
// resolved against the manifest address. Entries without a numeric size
// rank below every sized entry; ties keep list order.
func largestIcon(manifest *url.URL, icons []manifestIcon) (string, bool) {
	best, bestSize := "", -2
	for _, ic := range icons {
		abs, ok := resolve(manifest, ic.Src)
		if !ok {
			continue
		}
		if size := iconSize(ic.Sizes); size > bestSize {
			best, bestSize = abs, size
		}
	}
	return best, best != ""
}

// iconSize returns the leading integer of sizes ("192x192" is 192, and
// "16x16 32x32" is 16), or -1 when sizes does not start with a digit
func iconSize(sizes string) int {
	n, digits := 0, 0
	for _, r := range strings.TrimSpace(sizes) {
		if r < '0' || r > '9' {
			break
		}
		if n < 1<<20 {
			n = n*10 + int(r-'0')
		}
		digits++
	}
	if digits == 0 {
		return -1
	}
	return n
}
