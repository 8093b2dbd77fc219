// Package app wires the Helix server runtime: config, logging, persistence,
// and the authentication HTTP surface.
//
// It is intentionally small and deterministic to keep CI gates strict and behavior predictable.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"helix/cmd/identity"
	authapi "helix/cmd/internal/auth/api"
	"helix/cmd/internal/auth/token"
	"helix/cmd/internal/auth/user"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Helix server runtime: it owns the HTTP server wiring and the
// lifecycle of the credential store.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	accounts identity.Store
	svc      *user.Service
	auth     *authapi.Handler

	metrics *Metrics
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	accounts, dbPool, dbEnabled, err := newAccountStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	tokenCfg, err := token.LoadConfigFromEnv()
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	issuer, err := token.NewIssuer(tokenCfg)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	svc := user.NewService(accounts, issuer)
	authHandler := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), svc)

	var metrics *Metrics
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		accounts:  accounts,
		svc:       svc,
		auth:      authHandler,
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.metrics)

	var handler http.Handler = mux
	if a.metrics != nil {
		handler = a.metrics.WithHTTPMetrics(mux)
	}
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg, a.log)
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

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", runtimeBaseURL(a.cfg.HTTPAddr),
		"db_enabled", a.dbEnabled,
	)

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

	if a.dbPool != nil {
		a.dbPool.Close()
	}

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

// runtimeBaseURL turns a listen address into a URL a local operator can open.
// Wildcard binds are rewritten to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

// newAccountStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newAccountStore(ctx context.Context, cfg Config, log Logger) (identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewInMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	// Ownership model: app owns the pool lifecycle, the store only queries.
	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return store, pool, true, nil
}
