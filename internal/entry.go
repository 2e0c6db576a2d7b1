// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/applysync/internal/api"
	"github.com/starford/applysync/internal/appstore"
	"github.com/starford/applysync/internal/client"
	"github.com/starford/applysync/internal/devbackend"
	"github.com/starford/applysync/internal/events"
	"github.com/starford/applysync/internal/mcpserver"
	"github.com/starford/applysync/internal/notes"
	"github.com/starford/applysync/internal/session"
)

// syncLayer is the set of stores shared by the HTTP mirror and the MCP server.
type syncLayer struct {
	session *session.File
	apps    *client.Applications
	store   *appstore.Store
	notes   *notes.Registry
}

func newSyncLayer(ctx context.Context, cfg *Config, logger *slog.Logger, pub events.Publisher) (*syncLayer, error) {
	sess, err := session.NewFile(cfg.Session.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}

	c := client.New(cfg.API.BaseURL, sess, client.Options{
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
		Logger:    logger,
	})
	apps := client.NewApplications(c)

	store := appstore.New(apps, appstore.Config{
		PageSize:        cfg.Sync.PageSize,
		BulkStrategy:    appstore.BulkStrategy(cfg.Sync.BulkStrategy),
		BulkConcurrency: cfg.Sync.BulkConcurrency,
		Logger:          logger,
		Events:          pub,
	})
	reg := notes.NewRegistry(client.NewNotes(c), notes.Config{
		Logger:  logger,
		Events:  pub,
		Context: ctx,
	})

	return &syncLayer{session: sess, apps: apps, store: store, notes: reg}, nil
}

// Run starts the local HTTP mirror with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("api_base_url", cfg.API.BaseURL),
		slog.String("token_file", cfg.Session.TokenFile),
		slog.Int("page_size", cfg.Sync.PageSize),
		slog.String("bulk_strategy", cfg.Sync.BulkStrategy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := withSignals(ctx, logger)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	broker := events.NewBroker(cfg.Sync.EventThrottle)
	defer broker.Close()

	layer, err := newSyncLayer(gCtx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer layer.notes.Wait()

	box := appstore.NewSearchBox(gCtx, layer.store, cfg.Sync.SearchDebounce)
	defer box.Close()

	cancelWatch := layer.session.OnChange(func(tok string) {
		if tok == "" {
			logger.Warn("session ended, sign in again")
			broker.Publish(events.Event{Type: events.SessionInvalid})
			return
		}
		logger.Info("session token changed, reloading")
		go func() {
			if err := layer.store.Reload(gCtx); err != nil {
				logger.Warn("reload after sign-in failed", slog.String("error", err.Error()))
			}
		}()
	})
	defer cancelWatch()

	if layer.session.Token() == "" {
		logger.Warn("no session token, run `applysync token set` to sign in")
	} else if err := layer.store.Reload(gCtx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	h := api.NewHandler(layer.store, box, layer.apps, layer.notes)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if layer.session.Token() == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"signed_out"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	if cfg.Session.Watch {
		g.Go(func() error {
			if err := layer.session.Watch(gCtx, logger); err != nil {
				logger.Error("session watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	serve(gCtx, g, httpServer, logger)

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the sync layer as MCP tools over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	layer, err := newSyncLayer(ctx, cfg, logger, events.Nop{})
	if err != nil {
		return err
	}
	defer layer.notes.Wait()

	if layer.session.Token() == "" {
		return fmt.Errorf("no session token in %s", layer.session.Path())
	}
	if err := layer.store.Reload(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting", slog.String("api_base_url", cfg.API.BaseURL))
	return mcpserver.New(layer.store, layer.apps, layer.notes, app.version).ServeStdio()
}

// RunDevBackend starts the reference tracker backend.
func RunDevBackend(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	db, err := devbackend.Open(cfg.DevBackend.SQLitePath)
	if err != nil {
		return fmt.Errorf("init dev backend: %w", err)
	}
	defer db.Close()

	srv := devbackend.NewServer(db,
		devbackend.WithToken(cfg.DevBackend.Token),
		devbackend.WithLogger(logger),
	)
	httpServer := &http.Server{
		Addr:    cfg.DevBackend.Address(),
		Handler: srv.Handler(),
	}

	logger.Info("Dev backend starting",
		slog.String("http_address", cfg.DevBackend.Address()),
		slog.String("sqlite_path", cfg.DevBackend.SQLitePath),
		slog.Bool("auth", cfg.DevBackend.Token != ""))

	ctx, stop := withSignals(ctx, logger)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)
	serve(gCtx, g, httpServer, logger)
	return g.Wait()
}

// serve runs httpServer in g and shuts it down once ctx is done.
func serve(ctx context.Context, g *errgroup.Group, httpServer *http.Server, logger *slog.Logger) {
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})
}

// withSignals cancels ctx on SIGINT or SIGTERM so every goroutine in the
// group winds down, not just the HTTP server.
func withSignals(ctx context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(quit)
		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
