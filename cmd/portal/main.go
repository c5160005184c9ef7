package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mindrush/portal/pkg/api"
	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/config"
	"github.com/mindrush/portal/pkg/middleware"
	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/oidc"
	"github.com/mindrush/portal/pkg/quotes"
	"github.com/mindrush/portal/pkg/reset"
	"github.com/mindrush/portal/pkg/session"
	"github.com/mindrush/portal/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "portal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"port":        cfg.Server.Port,
		"health_port": cfg.Server.HealthPort,
		"db_driver":   cfg.Database.Driver,
	}).Info("starting portal")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Credential store
	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := users.Migrate(migrateCtx, db); err != nil {
		return err
	}
	if err := quotes.Migrate(migrateCtx, db); err != nil {
		return err
	}

	userStore := users.NewStore(db, cfg.Database.Driver)

	// Session store: Redis in deployment, in-memory for local development
	sessions, redisStore, err := openSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	if redisStore != nil {
		defer redisStore.Close()
	}

	// OIDC is optional; failures here leave the dev login as the only path.
	var oidcManager *oidc.Manager
	if cfg.OIDC.Configured() {
		oidcManager = oidc.NewManager(cfg.OIDC, logger)
		logger.WithField("issuer", cfg.OIDC.IssuerURL).Info("OIDC login enabled")
	} else {
		logger.Info("OIDC not configured, local login only")
	}

	// Developer accounts, optionally hot-reloaded on file change
	devAccounts, err := config.LoadDevAccounts(cfg.DevAccounts.File)
	if err != nil {
		return fmt.Errorf("failed to load dev accounts: %w", err)
	}
	devAuth := auth.NewDevAuthenticator(devAccounts, userStore, logger)
	if cfg.DevAccounts.File != "" && cfg.DevAccounts.Watch {
		stopWatch, err := config.WatchDevAccounts(cfg.DevAccounts.File, devAuth.SetAccounts, logger)
		if err != nil {
			logger.WithError(err).Warn("dev account watch unavailable")
		} else {
			defer stopWatch()
		}
	}

	resets := reset.NewManager(userStore, &reset.LogNotifier{Logger: logger}, metrics, logger)
	quoteStore := quotes.NewStore(db, cfg.Database.Driver)

	var refresher middleware.Refresher
	if oidcManager != nil {
		refresher = oidcManager
	}
	gate := middleware.NewAuthGate(sessions, refresher, metrics, logger)

	var oidcFlow api.OIDCFlow
	if oidcManager != nil {
		oidcFlow = oidcManager
	}
	authHandlers := api.NewAuthHandlers(sessions, oidcFlow, devAuth, userStore, resets,
		metrics, logger, cfg.Server.SecureCookies)
	quoteHandlers := api.NewQuoteHandlers(quoteStore, logger)
	apiServer := api.NewServer(gate, authHandlers, quoteHandlers, metrics, logger)

	// Background sweeps. Redis expires sessions passively; the sweep covers
	// the in-memory backend and stale reset tokens.
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@every 1h", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if n, err := sessions.DeleteExpired(ctx); err != nil {
			logger.WithError(err).Warn("session sweep failed")
		} else if n > 0 {
			if metrics != nil {
				metrics.SessionsActive.Sub(float64(n))
			}
			logger.WithField("count", n).Info("swept expired sessions")
		}

		if n, err := userStore.DeleteExpiredResetTokens(ctx); err != nil {
			logger.WithError(err).Warn("reset token sweep failed")
		} else if n > 0 {
			logger.WithField("count", n).Info("cleared expired reset tokens")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweeps: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Health and metrics on a separate port so probes skip the auth gate
	var redisClient *redis.Client
	if redisStore != nil {
		redisClient = redisStore.Client()
	}
	health := observability.NewHealthChecker(db, redisClient)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", observability.Handler(registry)).Methods("GET")
	}

	apiHTTPServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthHTTPServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterServer(apiHTTPServer)
	shutdown.RegisterServer(healthHTTPServer)

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.WithField("addr", apiHTTPServer.Addr).Info("API server listening")
		if err := apiHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthHTTPServer.Addr).Info("health server listening")
		if err := healthHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

// openDatabase opens and pings the credential store
func openDatabase(cfg *config.Config, logger *observability.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	logger.WithField("driver", cfg.Database.Driver).Info("connected to database")
	return db, nil
}

// openSessionStore selects the session backend from configuration
func openSessionStore(cfg *config.Config, logger *observability.Logger) (session.Store, *session.RedisStore, error) {
	if cfg.Redis.URL == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil, nil
	}

	store, err := session.NewRedisStore(session.RedisConfig{
		URL:        cfg.Redis.URL,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MaxRetries: cfg.Redis.MaxRetries,
		PoolSize:   cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using redis session store")
	return store, store, nil
}
