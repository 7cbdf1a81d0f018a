// Package app assembles the system in dependency order: store and archive
// first, then the coordinator, then the executor, gateway and HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"peerrank/internal/api"
	"peerrank/internal/archive"
	"peerrank/internal/config"
	"peerrank/internal/executor"
	"peerrank/internal/gateway"
	"peerrank/internal/room"
	"peerrank/internal/store"
)

type Application struct {
	cfg         *config.Config
	logger      *zap.Logger
	store       *store.FileStore
	archive     *archive.Store
	coordinator *room.Coordinator
	runner      *executor.Runner
	registry    *gateway.Registry
	httpServer  *http.Server

	sweepDone chan struct{}
}

// New builds the application. Nothing is started yet.
func New(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	fileStore, err := store.NewFileStore(cfg.Store.Dir, cfg.Store.EmptyTimeout, cfg.Store.CacheTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	summaryArchive, err := archive.Open(cfg.Archive.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary archive: %w", err)
	}

	coordinator := room.NewCoordinator(fileStore, summaryArchive, logger)
	runner := executor.NewRunner(cfg.Executor.Timeout, cfg.Executor.MaxOutput, cfg.Executor.WorkDir, logger)
	registry := gateway.NewRegistry()
	wsHandler := gateway.NewHandler(registry, coordinator, runner, cfg.WebSocket, logger)
	apiServer := api.NewServer(coordinator, fileStore, runner, summaryArchive, registry, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:         cfg,
		logger:      logger,
		store:       fileStore,
		archive:     summaryArchive,
		coordinator: coordinator,
		runner:      runner,
		registry:    registry,
		httpServer:  httpServer,
		sweepDone:   make(chan struct{}),
	}, nil
}

// Start runs the cleanup sweep and the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting peerrank", zap.String("addr", app.httpServer.Addr))

	go app.runCleanupSweep(ctx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("peerrank started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runCleanupSweep periodically garbage-collects sessions that have been
// empty past the configured threshold.
func (app *Application) runCleanupSweep(ctx context.Context) {
	ticker := time.NewTicker(app.cfg.Store.CleanupPeriod)
	defer ticker.Stop()
	defer close(app.sweepDone)

	for {
		select {
		case <-ticker.C:
			app.store.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts down in reverse dependency order: HTTP first, then the
// archive handle.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down peerrank")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	select {
	case <-app.sweepDone:
	case <-ctx.Done():
	}

	if err := app.archive.Close(); err != nil {
		app.logger.Warn("archive shutdown error", zap.Error(err))
	}

	app.logger.Info("peerrank shutdown complete")
	return nil
}

// Addr returns the listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
