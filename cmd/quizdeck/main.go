package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quizdeck/quizdeck/pkg/audit"
	"github.com/quizdeck/quizdeck/pkg/components"
	"github.com/quizdeck/quizdeck/pkg/config"
	"github.com/quizdeck/quizdeck/pkg/middleware"
	"github.com/quizdeck/quizdeck/pkg/observability"
	"github.com/quizdeck/quizdeck/pkg/plans"
	"github.com/quizdeck/quizdeck/pkg/rbac"
	"github.com/quizdeck/quizdeck/pkg/tenants"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quizdeck: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	// Database.
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := rbac.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := tenants.Migrate(ctx, db); err != nil {
		return err
	}

	// Optional shared cache.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The cache layer degrades to database reads, so a Redis
			// outage at startup is not fatal.
			logger.WithError(err).Warn("Redis unreachable at startup; continuing without shared cache confirmation")
		}
		defer redisClient.Close()
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	// Tracing.
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	// Role catalog.
	registry := components.DefaultRegistry()
	catalog := rbac.NewCatalog(nil)
	seeder := rbac.NewSeeder(catalog, cfg.Seed.Path, registry, logger, metrics)
	if err := seeder.Seed(); err != nil {
		return err
	}
	var seedWatcher interface{ Close() error }
	if cfg.Seed.Watch && cfg.Seed.Path != "" {
		watcher, err := seeder.Watch()
		if err != nil {
			return err
		}
		seedWatcher = watcher
		logger.WithField("path", cfg.Seed.Path).Info("Watching role catalog seed file")
	}

	// Audit trail.
	auditLogger, auditStore, err := buildAuditLogger(cfg, db)
	if err != nil {
		return err
	}

	var sweeper *audit.RetentionSweeper
	if auditStore != nil {
		sweeper = audit.NewRetentionSweeper(auditStore, audit.RetentionPolicy{
			RetentionDays: cfg.Audit.RetentionDays,
			Schedule:      cfg.Audit.RetentionSchedule,
		}, logger)
		if err := sweeper.Start(); err != nil {
			return err
		}
	}

	// Authorization core.
	var store rbac.CustomizationStore = rbac.NewSQLStore(db, catalog)
	if cfg.Cache.Enabled {
		cacheCfg := rbac.DefaultCachedStoreConfig()
		cacheCfg.L1Size = cfg.Cache.L1Size
		store = rbac.NewCachedStore(store, redisClient, cacheCfg, logger, metrics)
	}
	resolver := rbac.NewResolver(catalog, store)
	tenantStore := tenants.NewStore(db)
	gate := plans.NewGate(nil, tenantStore)
	engine := rbac.NewEngine(catalog, resolver, logger,
		rbac.WithPlanGate(gate),
		rbac.WithComponentRegistry(registry),
		rbac.WithAuditLogger(auditLogger),
		rbac.WithMetrics(metrics),
	)

	// API router.
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(observability.PanicRecoveryMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.HTTPMiddleware)
	}
	router.Use(middleware.NewIdentityMiddleware(true).Handler)
	if redisClient != nil {
		router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
	} else {
		router.Use(middleware.NewRateLimitMiddleware().Handler)
	}

	handlers := rbac.NewHandlers(catalog, store, resolver, engine, seeder, auditLogger, logger)
	api := router.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(api)

	if auditStore != nil {
		adminAPI := api.PathPrefix("/admin").Subrouter()
		adminAPI.Use(rbac.RequireRoles(engine, rbac.RoleSuperAdmin, rbac.RoleOrgAdmin))
		audit.NewHandlers(auditStore).RegisterRoutes(adminAPI)
	}

	var apiHandler http.Handler = router
	if otelProviders != nil {
		apiHandler = otelhttp.NewHandler(router, "quizdeck")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate listener for probes.
	healthChecker := observability.NewHealthChecker(cfg.Server.ReadTimeout)
	healthChecker.Register("database", func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if redisClient != nil {
		healthChecker.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthMux := http.NewServeMux()
	healthMux.Handle("/healthz", healthChecker.LivenessHandler())
	healthMux.Handle("/readyz", healthChecker.ReadinessHandler())
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error { return healthServer.Shutdown(ctx) })
	if seedWatcher != nil {
		shutdown.Register(func(context.Context) error { return seedWatcher.Close() })
	}
	if sweeper != nil {
		shutdown.Register(func(context.Context) error { sweeper.Stop(); return nil })
	}
	shutdown.Register(func(context.Context) error { return auditLogger.Close() })
	if otelProviders != nil {
		shutdown.Register(otelProviders.Shutdown)
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":  apiServer.Addr,
			"roles": len(catalog.Roles()),
		}).Info("Starting quizdeck authorization service")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	group.Go(shutdown.Wait)

	return group.Wait()
}

// buildAuditLogger assembles the configured audit destinations. The
// returned store is non-nil only when the database destination is on.
func buildAuditLogger(cfg *config.Config, db *sql.DB) (audit.Logger, *audit.Store, error) {
	var destinations []audit.Logger

	if cfg.Audit.LogDir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: cfg.Audit.LogDir})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create audit file logger: %w", err)
		}
		destinations = append(destinations, fileLogger)
	}

	var store *audit.Store
	if cfg.Audit.DBEnabled {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create audit db logger: %w", err)
		}
		destinations = append(destinations, dbLogger)
		store = audit.NewStore(db)
	}

	switch len(destinations) {
	case 0:
		return audit.NopLogger{}, nil, nil
	case 1:
		return destinations[0], store, nil
	default:
		return audit.NewMultiLogger(destinations...), store, nil
	}
}
