package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/msiSibs/urlShortener/internal/config"
	"github.com/msiSibs/urlShortener/internal/core"
	httpapi "github.com/msiSibs/urlShortener/internal/http"
	"github.com/msiSibs/urlShortener/internal/id"
	"github.com/msiSibs/urlShortener/internal/store/memory"
	"github.com/msiSibs/urlShortener/internal/store/postgres"
	redisstore "github.com/msiSibs/urlShortener/internal/store/redis"
	"github.com/msiSibs/urlShortener/internal/store/sqlite"
)

// Store is a core.Store that owns a connection.
type Store interface {
	core.Store
	io.Closer
}

// App wires config, storage, core service, and the HTTP router.
type App struct {
	Cfg     config.Config
	Store   Store
	Service *core.Service
	Router  *gin.Engine
	log     zerolog.Logger
}

// New builds a fully-wired application instance.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Code generator and core service.
	gen := id.NewGenerator(cfg.CodeLength, id.NewCryptoSource())
	svcLog := log.With().Str("component", "service").Logger()
	svc := core.NewService(store, gen, core.Options{
		BaseURL:           cfg.BaseURL,
		DefaultExpiryDays: cfg.DefaultExpiryDays,
		Logger:            &svcLog,
	})

	router := httpapi.NewRouter(svc, httpapi.Options{
		Logger:      log.With().Str("component", "http").Logger(),
		CORSOrigins: cfg.CORSOrigins,
	})

	return &App{
		Cfg:     cfg,
		Store:   store,
		Service: svc,
		Router:  router,
		log:     log,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite, "":
		s, err := sqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	case config.DriverRedis:
		s, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Addr returns the HTTP listen address, e.g. ":8080".
func (a *App) Addr() string { return a.Cfg.Addr() }

// Run serves HTTP (and the cleanup sweeper, when configured) until ctx is
// cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.Addr(),
		Handler:      a.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.Cfg.CleanupInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			NewSweeper(a.Service, a.Cfg.CleanupInterval, a.log).Run(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("store", a.Cfg.StoreDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.log.Info().Msg("shutting down server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}

	cancel()
	wg.Wait()
	return serveErr
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
