// Package app wires the vidtube server runtime: config, logging, the database
// pool, media storage, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vidtube/cmd/identity"
	authapi "vidtube/cmd/internal/auth/api"
	"vidtube/cmd/internal/auth/gate"
	"vidtube/cmd/internal/auth/session"
	"vidtube/cmd/internal/channel"
	"vidtube/cmd/internal/media"
)

// App is the vidtube server runtime. It owns the database pool and the HTTP
// server wiring.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool

	guard    func(http.Handler) http.Handler
	auth     *authapi.Handler
	channels *channel.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("VIDTUBE_DATABASE_URL is required")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a, err := wire(ctx, cfg, log, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// wire assembles the stores, services and handlers on top of an open pool.
func wire(ctx context.Context, cfg Config, log Logger, pool *pgxpool.Pool) (*App, error) {
	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewService(sessCfg, users, log)
	if err != nil {
		return nil, err
	}

	g, err := gate.New(sessions.Codec(), users, log)
	if err != nil {
		return nil, err
	}

	mediaCfg, err := media.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	host, err := media.NewS3Host(ctx, mediaCfg, log)
	if err != nil {
		return nil, err
	}

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), pool, users, sessions, host)
	if err != nil {
		return nil, err
	}

	views, err := channel.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}
	channels, err := channel.NewHandler(log, views)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		dbPool:   pool,
		guard:    g.Require,
		auth:     auth,
		channels: channels,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.dbPool, a.guard, a.auth, a.channels)

	var handler http.Handler = mux
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithMetrics(handler)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.dbPool.Close()

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
