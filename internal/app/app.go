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

	"github.com/bissquit/business-cards/api/openapi"
	"github.com/bissquit/business-cards/internal/config"
	"github.com/bissquit/business-cards/internal/directory"
	directorypostgres "github.com/bissquit/business-cards/internal/directory/postgres"
	directoryredis "github.com/bissquit/business-cards/internal/directory/redis"
	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/identity"
	"github.com/bissquit/business-cards/internal/identity/jwt"
	identitypostgres "github.com/bissquit/business-cards/internal/identity/postgres"
	"github.com/bissquit/business-cards/internal/pkg/ctxlog"
	"github.com/bissquit/business-cards/internal/pkg/httputil"
	"github.com/bissquit/business-cards/internal/pkg/metrics"
	"github.com/bissquit/business-cards/internal/pkg/postgres"
	redisclient "github.com/bissquit/business-cards/internal/pkg/redis"
	"github.com/bissquit/business-cards/internal/version"
	"github.com/bissquit/business-cards/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	requestTimeout        = 60 * time.Second
	dbMetricsInterval     = 15 * time.Second
	rateLimitCleanupEvery = time.Minute
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	server        *http.Server
	metricsServer *http.Server
	cancel        context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisclient.Connect(connectCtx, cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
		cancel: cancel,
	}

	router, err := app.setupRouter(ctx)
	if err != nil {
		app.closeStores()
		cancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	go metrics.CollectDBPoolMetrics(ctx, db, dbMetricsInterval)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

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

// Run starts the HTTP servers and blocks until the main server stops.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.cancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(2)
	go shutdown("server", a.server)
	go shutdown("metrics server", a.metricsServer)
	wg.Wait()

	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var err error
	if a.redis != nil {
		if closeErr := a.redis.Close(); closeErr != nil {
			err = fmt.Errorf("close redis: %w", closeErr)
		}
	}
	a.db.Close()
	return err
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(httputil.ClientIPMiddleware(a.config.Server.TrustProxyHeaders))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		httputil.Blob(w, http.StatusOK, "application/x-yaml", openapi.Spec)
	})

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{SecretKey: a.config.JWT.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	identityService := identity.NewService(identityRepo, jwtAuth,
		identity.WithHasher(identity.NewBcryptHasher(a.config.Auth.BcryptCost)),
		identity.WithAdminSignup(a.config.Auth.AllowAdminSignup),
	)
	identityHandler := identity.NewHandler(identityService)

	directoryOpts := []directory.Option{}
	if a.redis != nil {
		directoryOpts = append(directoryOpts,
			directory.WithProfileCache(directoryredis.NewProfileCache(a.redis, a.config.Redis.ProfileTTL)),
		)
	}
	directoryService := directory.NewService(directorypostgres.NewRepository(a.db), identityService, directoryOpts...)
	directoryHandler := directory.NewHandler(directoryService, a.config.Profile.BaseURL)

	limiter := httputil.NewRateLimiter(0, 0)
	if a.config.RateLimit.Enabled {
		limiter = httputil.NewRateLimiter(a.config.RateLimit.RequestsPerMinute, a.config.RateLimit.Burst)
		go limiter.RunCleanup(ctx, rateLimitCleanupEvery)
	}

	directoryHandler.RegisterPageRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			identityHandler.RegisterRoutes(r)
		})

		directoryHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			identityHandler.RegisterProtectedRoutes(r)
			directoryHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				directoryHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r, nil
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

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
