package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/kyvyrn/backend/internal/api/http"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/api/middleware"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/api/ws"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/catalog"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/fetch"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/chain"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/coordinator"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/handle"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/imaging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/probe"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/raster"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/storage"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	coordinator *coordinator.Coordinator
	catalog     *catalog.Catalog
	hub         *ws.Hub
	tracer      *tracing.Tracer
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics

	// warmCtx is canceled by Close to stop the startup warm-up
	warmCtx    context.Context
	warmCancel context.CancelFunc
	warmDone   sync.WaitGroup
	mu         sync.Mutex
	closed     bool
	closeOnce  sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{Level: cfg.Logging.Level})
		if err != nil {
			l = logging.NewDefault()
		}
		logger = l
	}

	logger.Info("Initializing icon server",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Icons.DataDir),
		zap.String("apps_dir", cfg.Icons.AppsDir),
	)

	// Metrics first, every other component records into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	tracer := tracing.New("icons", logger.Component("tracing"))

	store, err := newStore(cfg.Icons, logger)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:           cfg.Fetch.Timeout,
		Retries:           cfg.Fetch.Retries,
		MaxRedirects:      cfg.Fetch.MaxRedirects,
		UserAgent:         cfg.Fetch.UserAgent,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
		Logger:            logger.Component("fetch"),
	})

	resolver := chain.New(
		probe.Defaults(fetcher, logger.Component("probe")),
		raster.New(0).WithColors(cfg.Icons.FallbackBackground, cfg.Icons.FallbackForeground),
		chain.Options{Logger: logger.Component("chain"), Metrics: metrics},
	)

	hub := ws.NewHub(ws.Options{Metrics: metrics, Logger: logger.Component("ws")})
	cache := handle.New(handle.Options{Observer: hub.Publish, Metrics: metrics})

	coord := coordinator.New(resolver, cache, store, fetcher, coordinator.Options{
		Logger:      logger.Component("coordinator"),
		Metrics:     metrics,
		Normalizer:  imaging.New(cfg.Icons.MaxSize),
		Concurrency: cfg.Icons.Concurrency,
	})

	var apps *catalog.Catalog
	if cfg.Icons.AppsDir != "" {
		apps = catalog.New(cfg.Icons.AppsDir, logger.Component("catalog"))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(cors))

	var resolveLimit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Int("resolve_rps", cfg.RateLimit.ResolvePerSecond),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
		resolveLimit = append(resolveLimit, middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.ResolvePerSecond,
			Burst:             cfg.RateLimit.ResolveBurst,
		}))
	}

	handlers := apihttp.NewHandlers(coord, store, apihttp.Options{
		Catalog: apps,
		Hosts:   fetcher,
		Tracer:  tracer,
		Metrics: metrics,
		Logger:  logger.Component("api"),
	})
	handlers.Register(router, resolveLimit...)

	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	warmCtx, warmCancel := context.WithCancel(context.Background())

	return &Server{
		router:      router,
		httpServer:  httpServer,
		coordinator: coord,
		catalog:     apps,
		hub:         hub,
		tracer:      tracer,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
		warmCtx:     warmCtx,
		warmCancel:  warmCancel,
	}, nil
}

// newStore picks disk storage when a data directory is configured and keeps
// icons in memory otherwise. Either way reads go through an ARC cache.
func newStore(cfg config.IconConfig, logger *logging.Logger) (storage.Store, error) {
	var backend storage.Store
	if cfg.DataDir != "" {
		disk, err := storage.NewDisk(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open icon storage: %w", err)
		}
		logger.Info("Icon storage on disk", zap.String("dir", disk.Dir()))
		backend = disk
	} else {
		logger.Warn("ICON_DATA_DIR not set, icons are kept in memory only")
		backend = storage.NewMemory()
	}
	return storage.NewCached(backend, cfg.CacheSize), nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Warm ensures icons for every app in the catalog and returns per-app failures
func (s *Server) Warm(ctx context.Context) (map[string]error, error) {
	if s.catalog == nil {
		return nil, nil
	}
	bindings, err := s.catalog.Bindings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app catalog: %w", err)
	}

	s.logger.Info("Warming icons", zap.Int("apps", len(bindings)))
	failed := s.coordinator.EnsureAll(ctx, bindings)
	s.logger.Info("Icon warm-up finished",
		zap.Int("apps", len(bindings)),
		zap.Int("failed", len(failed)),
	)
	return failed, nil
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln. Startup warm-up runs in the background when enabled.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	if s.config.Icons.WarmOnStart && s.catalog != nil {
		s.warmDone.Add(1)
		go func() {
			defer s.warmDone.Done()
			if _, err := s.Warm(s.warmCtx); err != nil {
				s.logger.Warn("Icon warm-up failed", zap.Error(err))
			}
		}()
	}
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.warmCancel()
		s.warmDone.Wait()

		// Stream clients hold hijacked connections Shutdown does not track
		s.hub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(shutdownErr))
			err = fmt.Errorf("failed to shut down HTTP server: %w", shutdownErr)
		}

		s.coordinator.Close()
		s.tracer.Close()

		_ = s.logger.Sync()
	})
	return err
}
