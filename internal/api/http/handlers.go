// Package http exposes the icon subsystem over a JSON API.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/catalog"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/handle"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/shared/utils"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/storage"
)

// Icons is the coordinator surface the handlers use
type Icons interface {
	Lookup(appID string) (*handle.Handle, bool)
	AppIDs() []string
	EnsureIcon(ctx context.Context, b icon.Binding) (*handle.Handle, error)
	RefreshIcon(ctx context.Context, b icon.Binding) (*handle.Handle, error)
	UploadIcon(ctx context.Context, appID string, data []byte) (*handle.Handle, error)
	ReleaseIcon(appID string) bool
	PurgeIcon(ctx context.Context, appID string) error
	EnsureAll(ctx context.Context, bindings []icon.Binding) map[string]error
	MaxUploadBytes() int
}

// storeStats is implemented by caching stores such as *storage.Cached
type storeStats interface {
	Len() int
	HitRate() float64
}

// HostStater reports outbound circuit breaker states per host
type HostStater interface {
	HostStates() map[string]resilience.State
}

// Options holds the optional collaborators of Handlers
type Options struct {
	// Catalog fills in bindings for ensure requests without a body and backs /icons/warm
	Catalog *catalog.Catalog
	Hosts   HostStater
	Tracer  *tracing.Tracer
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	icons   Icons
	store   storage.Store
	catalog *catalog.Catalog
	hosts   HostStater
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
	logger  *zap.Logger
	hasher  *utils.Hasher
}

// NewHandlers creates a new handlers instance. store serves raw bytes for
// apps whose handle is not live.
func NewHandlers(icons Icons, store storage.Store, opts Options) *Handlers {
	return &Handlers{
		icons:   icons,
		store:   store,
		catalog: opts.Catalog,
		hosts:   opts.Hosts,
		tracer:  opts.Tracer,
		metrics: opts.Metrics,
		logger:  logging.OrNop(opts.Logger),
		hasher:  utils.DefaultHasher(),
	}
}

// Register mounts the icon routes. resolve wraps the routes that may reach
// out to websites.
func (h *Handlers) Register(r gin.IRoutes, resolve ...gin.HandlerFunc) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/icons", h.ListIcons)
	r.GET("/icons/:id", h.GetIcon)
	r.GET("/icons/:id/raw", h.GetIconRaw)
	r.POST("/icons/:id/ensure", with(resolve, h.EnsureIcon)...)
	r.POST("/icons/:id/refresh", with(resolve, h.RefreshIcon)...)
	r.PUT("/icons/:id", h.UploadIcon)
	r.DELETE("/icons/:id", h.DeleteIcon)
	r.POST("/icons/warm", with(resolve, h.WarmIcons)...)
}

func with(mw []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, handler)
}

// startSpan opens a child span of the request trace, or nothing without a tracer
func (h *Handlers) startSpan(c *gin.Context, name, appID string) (context.Context, func(error)) {
	if h.tracer == nil {
		return c.Request.Context(), func(error) {}
	}
	span, ctx := h.tracer.StartSpan(c.Request.Context(), name)
	span.SetTag("app_id", appID)
	return ctx, func(err error) {
		if err != nil {
			span.SetError(err)
		}
		h.tracer.End(span)
	}
}

// Root returns service info
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "kyvyrn-icons",
		"status":  "running",
	})
}

// Health returns health status with live handle and breaker details
func (h *Handlers) Health(c *gin.Context) {
	hosts := gin.H{}
	if h.hosts != nil {
		for host, state := range h.hosts.HostStates() {
			hosts[host] = state.String()
		}
	}

	resp := gin.H{
		"status":  "healthy",
		"handles": len(h.icons.AppIDs()),
		"hosts":   hosts,
		"metrics": h.metrics.Snapshot(),
	}
	if s, ok := h.store.(storeStats); ok {
		resp["store"] = gin.H{
			"cached":   s.Len(),
			"hit_rate": s.HitRate(),
		}
	}
	c.JSON(http.StatusOK, resp)
}
