// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/devonjones/cortex-gateway/internal/bodystore"
	"github.com/devonjones/cortex-gateway/internal/config"
	"github.com/devonjones/cortex-gateway/internal/emails"
	emailspostgres "github.com/devonjones/cortex-gateway/internal/emails/postgres"
	"github.com/devonjones/cortex-gateway/internal/gmailauth"
	"github.com/devonjones/cortex-gateway/internal/mappings"
	mappingspostgres "github.com/devonjones/cortex-gateway/internal/mappings/postgres"
	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/devonjones/cortex-gateway/internal/pkg/metrics"
	"github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/devonjones/cortex-gateway/internal/queue"
	queuepostgres "github.com/devonjones/cortex-gateway/internal/queue/postgres"
	syncjobs "github.com/devonjones/cortex-gateway/internal/sync"
	syncpostgres "github.com/devonjones/cortex-gateway/internal/sync/postgres"
	"github.com/devonjones/cortex-gateway/internal/triage"
	triagepostgres "github.com/devonjones/cortex-gateway/internal/triage/postgres"
	"github.com/devonjones/cortex-gateway/internal/triageconfig"
	triageconfigpostgres "github.com/devonjones/cortex-gateway/internal/triageconfig/postgres"
	"github.com/devonjones/cortex-gateway/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *postgres.Pool
	bodies        *bodystore.Client
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		bodies:        bodystore.NewClient(cfg.BodyStore.URL, cfg.BodyStore.Timeout, cfg.BodyStore.BatchTimeout),
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, queueService := app.setupRouter()
	go app.collectQueueMetrics(metricsCtx, queueService)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db.Stat())

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

// collectQueueMetrics refreshes the queue depth gauges. Stats publishes the
// gauges as a side effect.
func (a *App) collectQueueMetrics(ctx context.Context, svc *queue.Service) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := svc.Stats(ctx); err != nil {
				a.logger.Error("failed to collect queue stats", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, *queue.Service) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.config.Server.RequestTimeout))

	if a.config.RateLimit.Enabled {
		limiter := httputil.NewRateLimiter(a.config.RateLimit.RPS, a.config.RateLimit.Burst)
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	queueRepo := queuepostgres.NewRepository(a.db)
	queueService := queue.NewService(queueRepo)
	queueHandler := queue.NewHandler(queueService)

	mappingsRepo := mappingspostgres.NewRepository(a.db)
	mappingsService := mappings.NewService(mappingsRepo)
	mappingsHandler := mappings.NewHandler(mappingsService)

	triageRepo := triagepostgres.NewRepository(a.db)
	triageService := triage.NewService(triageRepo, queueService)
	triageHandler := triage.NewHandler(triageService)

	emailsRepo := emailspostgres.NewRepository(a.db)
	emailsService := emails.NewService(emailsRepo, a.bodies)
	emailsHandler := emails.NewHandler(emailsService)

	syncRepo := syncpostgres.NewRepository(a.db)
	syncService := syncjobs.NewService(syncRepo)
	syncHandler := syncjobs.NewHandler(syncService)

	configRepo := triageconfigpostgres.NewRepository(a.db)
	configService := triageconfig.NewService(configRepo)
	configHandler := triageconfig.NewHandler(configService)

	oauthStore := gmailauth.NewStore(a.config.OAuth.TokenPath)
	oauthHandler := gmailauth.NewHandler(oauthStore, a.config.OAuth.RedirectURL, a.config.OAuth.StateTTL)

	r.Route("/api/v1", func(r chi.Router) {
		queueHandler.RegisterRoutes(r)
		mappingsHandler.RegisterRoutes(r)
		triageHandler.RegisterRoutes(r)
		emailsHandler.RegisterRoutes(r)
		syncHandler.RegisterRoutes(r)
		configHandler.RegisterRoutes(r)
	})

	// Browser-facing flow; lives outside /api/v1 because the redirect URL
	// registered with the OAuth client points at /oauth/callback.
	oauthHandler.RegisterRoutes(r)

	return r, queueService
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	// The body store is advisory for readiness; emails endpoints degrade
	// without it, so log but stay ready.
	if !a.bodies.Healthy(ctx) {
		ctxlog.FromContext(r.Context()).Warn("body store unreachable")
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
