package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/adapters/rest"
	"github.com/ewilliams-labs/soundwatch/internal/bootstrap"
	"github.com/ewilliams-labs/soundwatch/internal/config"
	"github.com/ewilliams-labs/soundwatch/internal/core/services"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
	"github.com/ewilliams-labs/soundwatch/internal/metrics"
	"github.com/ewilliams-labs/soundwatch/internal/worker"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal(logging.CategoryApp, "invalid configuration: %v", err)
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		logging.Fatal(logging.CategoryApp, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Artifacts and pipeline. Either artifact missing, or the two not
	// agreeing on the class count, is fatal.
	artifacts, err := bootstrap.LoadArtifacts(ctx, cfg)
	if err != nil {
		logging.Fatal(logging.CategoryModel, "failed to load artifacts: %v", err)
	}
	m := metrics.New()
	pipeline, err := services.NewPipeline(bootstrap.NewRuntime(cfg, artifacts), m)
	if err != nil {
		logging.Fatal(logging.CategoryModel, "invalid runtime: %v", err)
	}

	// 3. Incident store
	repo, closeRepo, err := bootstrap.OpenRepository(ctx, cfg)
	if err != nil {
		logging.Fatal(logging.CategoryStore, "failed to initialize database: %v", err)
	}
	defer closeRepo()

	// 4. Workers and HTTP adapter
	pool := worker.NewPool(cfg.WorkerCount, cfg.WorkerQueueSize)
	pool.Start()
	defer pool.Stop()
	m.TrackQueue(pool.QueueLen, pool.Workers())

	handler := rest.NewHandler(pipeline, services.NewIncidentService(repo), pool, rest.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Metrics:        m,
	})

	// 5. Start the Server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	logging.Info(logging.CategoryApp, "soundwatch API is running on http://localhost%s", cfg.Addr())

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error(logging.CategoryApp, "server error: %v", err)
		}
	case <-ctx.Done():
		logging.Info(logging.CategoryApp, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error(logging.CategoryApp, "shutdown error: %v", err)
		}
	}
}
