package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/fetch"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/handle"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/imaging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/storage"
)

// DefaultMaxUploadBytes caps user supplied icons
const DefaultMaxUploadBytes = 1 << 20

var errClosed = errors.New("coordinator closed")

// Resolver finds an icon source for a site. *chain.Chain satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, url, name string) icon.Result
	Fallback(name string) icon.Result
}

// Fetcher retrieves candidate icon bytes. *fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Normalizer converts fetched or uploaded bytes to PNG.
// *imaging.Normalizer satisfies it.
type Normalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Options configures a Coordinator
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// Normalizer defaults to imaging.New(imaging.DefaultMaxSize)
	Normalizer Normalizer
	// Concurrency bounds EnsureAll, default 4
	Concurrency int
	// MaxUploadBytes defaults to DefaultMaxUploadBytes
	MaxUploadBytes int
}

// Coordinator serializes icon work per application and owns the path from
// a binding to an installed handle
type Coordinator struct {
	resolver   Resolver
	cache      *handle.Cache
	store      storage.Store
	fetcher    Fetcher
	normalizer Normalizer

	locks *keyedMutex

	// closeMu orders installs against Close; installs hold it shared
	closeMu sync.RWMutex
	closed  bool

	concurrency    int
	maxUploadBytes int
	logger         *zap.Logger
	metrics        *monitoring.Metrics
}

// New creates a coordinator
func New(resolver Resolver, cache *handle.Cache, store storage.Store, fetcher Fetcher, opts Options) *Coordinator {
	if opts.Normalizer == nil {
		opts.Normalizer = imaging.New(imaging.DefaultMaxSize)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return &Coordinator{
		resolver:       resolver,
		cache:          cache,
		store:          store,
		fetcher:        fetcher,
		normalizer:     opts.Normalizer,
		locks:          newKeyedMutex(),
		concurrency:    opts.Concurrency,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logging.OrNop(opts.Logger),
		metrics:        opts.Metrics,
	}
}

// Lookup returns the live handle for appID without side effects
func (c *Coordinator) Lookup(appID string) (*handle.Handle, bool) {
	return c.cache.Get(appID)
}

// AppIDs lists the app ids with a live handle, sorted
func (c *Coordinator) AppIDs() []string {
	return c.cache.AppIDs()
}

// MaxUploadBytes is the largest accepted upload
func (c *Coordinator) MaxUploadBytes() int {
	return c.maxUploadBytes
}

// EnsureIcon makes sure appID has a live handle. An existing handle is
// returned as is; otherwise stored bytes are installed, and only when none
// exist is the site resolved.
func (c *Coordinator) EnsureIcon(ctx context.Context, b icon.Binding) (*handle.Handle, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if h, ok := c.cache.Get(b.AppID); ok {
		return h, nil
	}

	unlock, err := c.lock(ctx, "ensure", b.AppID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another caller may have finished while we waited
	if h, ok := c.cache.Get(b.AppID); ok {
		return h, nil
	}

	if h, ok := c.installStored(ctx, b.AppID); ok {
		return h, nil
	}
	return c.resolve(ctx, "ensure", b)
}

// RefreshIcon re-resolves b regardless of cached or stored state
func (c *Coordinator) RefreshIcon(ctx context.Context, b icon.Binding) (*handle.Handle, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	unlock, err := c.lock(ctx, "refresh", b.AppID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return c.resolve(ctx, "refresh", b)
}

// UploadIcon installs user supplied bytes for appID without resolution.
// The bytes must decode as an image and fit MaxUploadBytes.
func (c *Coordinator) UploadIcon(ctx context.Context, appID string, data []byte) (*handle.Handle, error) {
	if err := storage.ValidateAppID(appID); err != nil {
		return nil, fmt.Errorf("%w: %v", icon.ErrInvalidBinding, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", icon.ErrInvalidImage)
	}
	if len(data) > c.maxUploadBytes {
		return nil, fmt.Errorf("%w: upload of %d bytes exceeds %d", icon.ErrInvalidImage, len(data), c.maxUploadBytes)
	}

	png, err := c.normalizer.Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", icon.ErrInvalidImage, err)
	}

	unlock, err := c.lock(ctx, "upload", appID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	timer := monitoring.NewTimer(c.metrics)
	h, err := c.persistAndInstall(ctx, "upload", appID, png)
	if err != nil {
		return nil, err
	}
	timer.Stop(string(icon.SourceUserSupplied))

	c.logger.Info("Icon uploaded", zap.String("app_id", appID), zap.Int("bytes", len(png)))
	return h, nil
}

// ReleaseIcon evicts the handle for appID. Stored bytes are kept. An
// operation in flight for appID finishes first, so its install cannot
// outlive the release.
func (c *Coordinator) ReleaseIcon(appID string) bool {
	unlock, _ := c.locks.Lock(context.Background(), appID)
	defer unlock()
	return c.cache.Evict(appID)
}

// PurgeIcon evicts the handle and deletes the stored bytes for appID
func (c *Coordinator) PurgeIcon(ctx context.Context, appID string) error {
	unlock, err := c.lock(ctx, "purge", appID)
	if err != nil {
		return err
	}
	defer unlock()

	c.cache.Evict(appID)
	if err := c.store.Delete(ctx, appID); err != nil {
		c.metrics.RecordStorageError("delete")
		c.metrics.RecordUnavailable("purge")
		c.logger.Error("Failed to delete stored icon", zap.String("app_id", appID), zap.Error(err))
		return fmt.Errorf("%w: %v", icon.ErrUnavailable, err)
	}
	return nil
}

// EnsureAll runs EnsureIcon for every binding with bounded concurrency.
// Individual failures are logged and do not stop the batch; the returned
// map holds the error for each binding that failed.
func (c *Coordinator) EnsureAll(ctx context.Context, bindings []icon.Binding) map[string]error {
	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, b := range bindings {
		b := b
		g.Go(func() error {
			if _, err := c.EnsureIcon(gctx, b); err != nil {
				c.logger.Warn("Failed to ensure icon", zap.String("app_id", b.AppID), zap.Error(err))
				mu.Lock()
				failed[b.AppID] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// Close purges every handle. Operations still in flight complete without
// installing anything.
func (c *Coordinator) Close() {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()

	n := c.cache.Purge()
	c.logger.Info("Icon coordinator closed", zap.Int("purged", n))
}

func (c *Coordinator) isClosed() bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	return c.closed
}

func (c *Coordinator) lock(ctx context.Context, op, appID string) (func(), error) {
	if c.isClosed() {
		c.metrics.RecordUnavailable(op)
		return nil, fmt.Errorf("%w: %v", icon.ErrUnavailable, errClosed)
	}
	unlock, err := c.locks.Lock(ctx, appID)
	if err != nil {
		c.metrics.RecordUnavailable(op)
		return nil, fmt.Errorf("%w: %v", icon.ErrUnavailable, err)
	}
	return unlock, nil
}

// installStored installs previously persisted bytes without network access
func (c *Coordinator) installStored(ctx context.Context, appID string) (*handle.Handle, bool) {
	data, err := c.store.Load(ctx, appID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, false
	case err != nil:
		c.metrics.RecordStorageError("load")
		c.logger.Warn("Failed to load stored icon", zap.String("app_id", appID), zap.Error(err))
		return nil, false
	case !imaging.IsImage(data):
		c.logger.Warn("Stored icon is not an image, resolving again", zap.String("app_id", appID))
		return nil, false
	}

	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return nil, false
	}
	return c.cache.Install(appID, data), true
}

// resolve runs the chain, materializes the winner and installs it
func (c *Coordinator) resolve(ctx context.Context, op string, b icon.Binding) (*handle.Handle, error) {
	timer := monitoring.NewTimer(c.metrics)

	res := c.resolver.Resolve(ctx, b.URL, b.Name)
	data, origin := c.materialize(ctx, b, res)

	h, err := c.persistAndInstall(ctx, op, b.AppID, data)
	if err != nil {
		return nil, err
	}
	timer.Stop(string(origin))

	c.logger.Info("Icon installed",
		zap.String("app_id", b.AppID),
		zap.String("origin", string(origin)),
		zap.String("source", res.SourceURL),
	)
	return h, nil
}

// materialize turns a resolution result into PNG bytes. A remote candidate
// that cannot be fetched or decoded falls back to the rasterized icon
// without trying other sources.
func (c *Coordinator) materialize(ctx context.Context, b icon.Binding, res icon.Result) ([]byte, icon.Source) {
	if res.Origin.Remote() {
		data, err := c.fetchCandidate(ctx, res.SourceURL)
		if err == nil {
			return data, res.Origin
		}
		c.metrics.RecordFetchFailure(string(res.Origin))
		c.logger.Info("Icon candidate unusable, rasterizing",
			zap.String("app_id", b.AppID),
			zap.String("origin", string(res.Origin)),
			zap.String("candidate", res.SourceURL),
			zap.Error(err),
		)
		res = c.resolver.Fallback(b.Name)
	}

	// Local bytes are already PNG; normalizing only applies the size limit
	if png, err := c.normalizer.Normalize(res.Bytes); err == nil {
		return png, res.Origin
	}
	return res.Bytes, res.Origin
}

func (c *Coordinator) fetchCandidate(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Normalize(resp.Body)
}

// persistAndInstall saves data and, only if that succeeded and the caller is
// still interested, installs it
func (c *Coordinator) persistAndInstall(ctx context.Context, op, appID string, data []byte) (*handle.Handle, error) {
	if err := ctx.Err(); err != nil {
		c.metrics.RecordUnavailable(op)
		return nil, fmt.Errorf("%w: %v", icon.ErrUnavailable, err)
	}
	if c.isClosed() {
		c.metrics.RecordUnavailable(op)
		return nil, fmt.Errorf("%w: %v", icon.ErrUnavailable, errClosed)
	}

	if err := c.store.Save(ctx, appID, data); err != nil {
		c.metrics.RecordStorageError("save")
		c.metrics.RecordUnavailable(op)
		c.logger.Error("Failed to persist icon", zap.String("app_id", appID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", icon.ErrUnavailable, err)
	}

	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		c.metrics.RecordUnavailable(op)
		return nil, fmt.Errorf("%w: %v", icon.ErrUnavailable, errClosed)
	}
	return c.cache.Install(appID, data), nil
}
