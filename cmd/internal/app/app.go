// Package app wires the process together: configuration, logging, the
// session store backends, the GitHub OAuth client, the HTTP server, and
// its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"gitfolio/cmd/internal/auth/api"
	"gitfolio/cmd/internal/auth/oauth"
	"gitfolio/cmd/internal/auth/session"
)

// App is the assembled gitfolio process.
type App struct {
	cfg Config
	log *slog.Logger

	pool     *pgxpool.Pool
	rdb      *redis.Client
	sessions *session.Service
	registry *prometheus.Registry

	server *http.Server
}

// New loads all configuration and assembles the application. It fails fast:
// a missing secret or unreachable required backend surfaces here, not on
// the first request.
func New(ctx context.Context) (*App, error) {
	cfg := LoadConfigFromEnv()
	log := NewLogger(cfg.LogLevel)

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	oauthCfg, err := oauth.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	apiCfg, err := api.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("api config: %w", err)
	}

	a := &App{cfg: cfg, log: log}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	access, err := session.NewPasetoV4LocalManager(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("access token manager: %w", err)
	}
	refresh, err := session.NewHS256RefreshManager(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("refresh token manager: %w", err)
	}

	github := oauth.NewClient(oauthCfg)
	a.sessions = session.NewService(sessCfg, store, access, refresh, github)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewHandler(log, apiCfg, a.sessions, github, api.NewMetrics(a.registry))

	mux := http.NewServeMux()
	a.registerHTTP(mux)
	handler.Register(mux)

	var root http.Handler = WithRequestLogging(log, mux)
	if len(cfg.CORSOrigins) > 0 {
		root = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(root)
	}

	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return a, nil
}

// openStore picks the session store backend: Postgres when a database URL
// is configured, Redis next, and the in-memory store as the dev fallback.
func (a *App) openStore(ctx context.Context) (session.Store, error) {
	switch {
	case a.cfg.DatabaseURL != "":
		if a.cfg.AutoMigrate {
			if err := RunMigrations(a.cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}

		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		if err := PingDB(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.pool = pool
		a.log.Info("using postgres session store")
		return session.NewPostgresStore(pool), nil

	case a.cfg.RedisAddr != "":
		rdb := NewRedisClient(a.cfg)
		if err := PingRedis(ctx, rdb); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.rdb = rdb
		a.log.Info("using redis session store", "addr", a.cfg.RedisAddr)
		return session.NewRedisStore(rdb), nil

	default:
		a.log.Warn("no database or redis configured; sessions will not survive a restart")
		return session.NewMemoryStore(), nil
	}
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go a.sweepLoop(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.close()
	return err
}

// sweepLoop periodically deletes expired session records.
func (a *App) sweepLoop(ctx context.Context) {
	if a.cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.sessions.SweepExpired(ctx, time.Now())
			if err != nil {
				a.log.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.log.Info("swept expired sessions", "count", n)
			}
		}
	}
}

func (a *App) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
