package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joefoxing/lyriq/internal/config"
	"github.com/joefoxing/lyriq/internal/core/asr"
	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/lyrics"
	"github.com/joefoxing/lyriq/internal/core/progress"
	"github.com/joefoxing/lyriq/internal/core/service"
	"github.com/joefoxing/lyriq/internal/core/worker"
	"github.com/joefoxing/lyriq/internal/database"
	"github.com/joefoxing/lyriq/internal/server/api"
)

// Run wires the whole service together and blocks until shutdown: database,
// job store, ASR engine, worker pool, reaper, and the HTTP API.
func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Logging.Level).Msg("log level configured")

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	transcriber, err := asr.New(asr.Config{
		Engine:  cfg.ASR.Engine,
		APIURL:  cfg.ASR.APIURL,
		APIKey:  cfg.ASR.APIKey,
		Binary:  cfg.ASR.Binary,
		Model:   cfg.ASR.Model,
		Timeout: config.Duration(cfg.ASR.Timeout, 10*time.Minute),
	})
	if err != nil {
		return fmt.Errorf("asr engine: %w", err)
	}
	log.Info().Str("engine", cfg.ASR.Engine).Msg("asr engine ready")

	store := job.NewStore(pool,
		cfg.Worker.MaxAttempts,
		config.Duration(cfg.Worker.JobTimeout, time.Hour),
	)
	pub := progress.NewPublisher(32)
	svc := service.New(store, pub)

	workerPool := worker.NewPool(store, transcriber, pub, worker.Config{
		Count:         cfg.Worker.Count,
		LeaseDuration: config.Duration(cfg.Worker.LeaseDuration, 2*time.Minute),
		PollInterval:  config.Duration(cfg.Worker.PollInterval, time.Second),
		Postprocess: lyrics.Config{
			Window:          cfg.Postprocess.DedupWindow,
			MinRepeatLength: cfg.Postprocess.MinRepeatLength,
			MinWords:        cfg.Postprocess.MinWords,
		},
	})
	reaper := worker.NewReaper(store, pub,
		config.Duration(cfg.Worker.ReapInterval, 15*time.Second))

	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		workerPool.Run(runCtx)
	}()
	go reaper.Run(runCtx)

	e := echo.New()
	e.HideBanner = true
	api.SetupRouter(e, api.RouterConfig{Svc: svc})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop the HTTP surface first so no new work arrives, then let the
	// workers drain. Abandoned leases expire and are picked up after
	// restart, so a hard deadline here loses no jobs.
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("workers did not drain before deadline")
	}
	return nil
}
