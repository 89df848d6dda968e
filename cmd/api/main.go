package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/usershub/internal/cache"
	"github.com/geocoder89/usershub/internal/config"
	"github.com/geocoder89/usershub/internal/db"
	httpx "github.com/geocoder89/usershub/internal/http"
	"github.com/geocoder89/usershub/internal/http/handlers"
	"github.com/geocoder89/usershub/internal/observability"
	"github.com/geocoder89/usershub/internal/repo/cached"
	"github.com/geocoder89/usershub/internal/repo/memory"
	"github.com/geocoder89/usershub/internal/repo/mysql"
	"github.com/geocoder89/usershub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// usersBackend is a store the process can ping and sync the schema of.
type usersBackend interface {
	handlers.UsersStore
	Ping(ctx context.Context) error
}

type schemaSyncer interface {
	EnsureSchema(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Verbose())
	slog.SetDefault(log)

	if cfg.Env != config.EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: httpx.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	backend, closeStore, err := openStore(cfg, prom, log)
	if err != nil {
		log.Error("database connection failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()
	log.Info("database connected", "driver", cfg.DBDriver)

	if syncer, ok := backend.(schemaSyncer); ok && cfg.AutoSchemaSync() {
		ctx, cancel := config.WithTimeout(10 * time.Second)
		err := syncer.EnsureSchema(ctx)
		cancel()

		if err != nil {
			log.Error("schema sync failed", "err", err)
			os.Exit(1)
		}
		log.Info("schema synchronized")
	}

	var users handlers.UsersStore = backend
	if cfg.CacheEnabled() {
		c, closeCache := openCache(cfg, log)
		defer closeCache()
		users = cached.NewUsersRepo(backend, c, prom, log)
	}

	var shuttingDown atomic.Bool

	router := httpx.NewRouter(httpx.RouterDeps{
		Log:          log,
		Config:       cfg,
		Users:        users,
		Ping:         backend.Ping,
		ShuttingDown: shuttingDown.Load,
		Prom:         prom,
		Gatherer:     reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		shuttingDown.Store(true)
		log.Info("server shutting down")
	case err := <-serverErr:
		log.Error("server failed", "err", err)
		closeStore()
		os.Exit(1)
	}

	ctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}

	log.Info("shutdown complete")
}

const connectAttempts = 5

func openStore(cfg config.Config, prom *observability.Prom, log *slog.Logger) (usersBackend, func(), error) {
	ctx := context.Background()

	switch cfg.DBDriver {
	case config.DriverPostgres:
		// verbose mode logs every statement
		var queryLog *slog.Logger
		if cfg.Verbose() {
			queryLog = log.With("component", "pgx")
		}

		pool, err := db.Connect(ctx, log, connectAttempts, func() (*pgxpool.Pool, error) {
			return db.NewPool(cfg.PostgresURL(), cfg.DBMaxConns, queryLog)
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUsersRepo(pool, prom), pool.Close, nil

	case config.DriverMySQL:
		mc := db.MySQLConfig{
			Addr:     cfg.DBAddr(),
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
			MaxConns: int(cfg.DBMaxConns),
		}
		conn, err := db.Connect(ctx, log, connectAttempts, func() (*sql.DB, error) {
			return db.OpenMySQL(mc)
		})
		if err != nil {
			return nil, nil, err
		}
		return mysql.NewUsersRepo(conn, prom), func() { _ = conn.Close() }, nil

	case config.DriverMemory:
		return memory.NewUsersRepo(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}
}

// openCache prefers Redis when configured and reachable, otherwise an in-process cache.
func openCache(cfg config.Config, log *slog.Logger) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL), func() {}
	}

	rc := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	}, log)

	ctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := rc.Ping(ctx); err != nil {
		log.Warn("redis unreachable, using in-process cache", "addr", cfg.RedisAddr, "err", err)
		_ = rc.Close()
		return cache.NewMemory(cfg.CacheTTL), func() {}
	}

	log.Info("redis cache connected", "addr", cfg.RedisAddr)
	return rc, func() { _ = rc.Close() }
}
