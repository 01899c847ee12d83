// vidsqueezed is the batch compression daemon. It exposes a REST control
// surface and an SSE event stream, and fans batch events out to the
// configured sinks: history, archive storage, the message queue, and
// webhooks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vidsqueeze/vidsqueeze/internal/cache"
	"github.com/vidsqueeze/vidsqueeze/internal/config"
	"github.com/vidsqueeze/vidsqueeze/internal/history"
	"github.com/vidsqueeze/vidsqueeze/internal/logging"
	"github.com/vidsqueeze/vidsqueeze/internal/metrics"
	"github.com/vidsqueeze/vidsqueeze/internal/middleware"
	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/internal/queue"
	"github.com/vidsqueeze/vidsqueeze/internal/storage"
	"github.com/vidsqueeze/vidsqueeze/internal/tracing"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
	"github.com/vidsqueeze/vidsqueeze/internal/webhook"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	if cfg.Tracing.Enabled {
		closer, err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize tracing")
		}
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []Sink
	ms := newMetricsSink()
	sinks = append(sinks, ms)

	var repo *history.Repository
	if cfg.Database.Enabled {
		db, err := history.New(cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare history schema")
		}

		repo = history.NewRepository(db)
		sinks = append(sinks, newHistorySink(repo, logger))
		logger.Info().Msg("batch history enabled")
	}

	if cfg.Storage.Enabled {
		archive, err := storage.New(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize storage")
		}
		sinks = append(sinks, newArchiveSink(archive, logger))
		logger.Info().Str("bucket", cfg.Storage.BucketName).Msg("output archiving enabled")
	}

	if cfg.Queue.Enabled {
		pub, err := queue.New(cfg.Queue)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to queue")
		}
		defer pub.Close()
		sinks = append(sinks, newQueueSink(pub, logger))
		logger.Info().Str("exchange", cfg.Queue.Exchange).Msg("event publishing enabled")
	}

	if cfg.Webhook.Enabled {
		sinks = append(sinks, newWebhookSink(webhook.NewNotifier(cfg.Webhook, logger), logger))
		logger.Info().Str("url", cfg.Webhook.URL).Msg("webhook notifications enabled")
	}

	var prober probe.Prober = probe.New(cfg.Transcoder.FFprobePath, 0)
	if cfg.Redis.Enabled {
		cached, err := cache.NewProbeCache(
			cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			prober, cfg.Redis.TTL, logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer cached.Close()
		prober = cached
		logger.Info().Msg("probe cache enabled")
	}

	sequencer := transcoder.NewSequencer(cfg.Transcoder.FFmpegPath, prober, logger)

	h := newHub(logger, sinks...)
	go h.Run(ctx, sequencer.Events())

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		go limiter.Cleanup(ctx)
	}

	server := &Server{
		ctrl:          sequencer,
		hub:           h,
		repo:          repo,
		metricsSink:   ms,
		log:           logger,
		baseCtx:       ctx,
		defaultOutDir: cfg.Transcoder.OutputDir,
		defaultSuffix: cfg.Transcoder.OutputSuffix,
		ffmpegPath:    cfg.Transcoder.FFmpegPath,
		ffprobePath:   cfg.Transcoder.FFprobePath,
		apiKey:        cfg.Server.APIKey,
		limiter:       limiter,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// The signal context already cancelled any running batch; give in-flight
	// requests and sinks a bounded window to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server forced to shutdown")
		}
	}

	logger.Info().Msg("server stopped")
}
