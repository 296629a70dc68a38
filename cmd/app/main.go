// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interview-ai-recorder/internal/config"
	"interview-ai-recorder/internal/domain/ports/adapter"
	aiAdapters "interview-ai-recorder/internal/infra/adapters/ai"
	pg "interview-ai-recorder/internal/infra/db/postgres"
	"interview-ai-recorder/internal/infra/logging"
	"interview-ai-recorder/internal/infra/metrics"
	red "interview-ai-recorder/internal/infra/redis"
	"interview-ai-recorder/internal/infra/storage"
	"interview-ai-recorder/internal/infra/web"
	"interview-ai-recorder/internal/infra/worker"
	"interview-ai-recorder/internal/queue"
	"interview-ai-recorder/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)
	sessionRepo := pg.NewSessionRepo(pool, tm)

	// ---- Redis ----
	var limiter usecase.RateLimiter
	var locker storage.SessionLocker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; upload rate limiting disabled")
	}

	// ---- Storage ----
	store, err := storage.New(cfg.Upload.Dir, locker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}

	// ---- AI adapter ----
	var analyzer adapter.VideoAnalyzer
	if cfg.Runtime.Dev && cfg.AI.GeminiKey == "" {
		analyzer = aiAdapters.NewNoopAnalyzer()
		logger.Warn().Msg("AI adapter: noop (dev)")
	} else {
		analyzer, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiBaseURL, cfg.AI.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("AI adapter: gemini")
	}

	// ---- Job queue + worker ----
	analysisWorker := worker.NewAnalysisWorker(analyzer, sessionRepo, store, logger)
	hub := web.NewHub(logger)
	hub.Run()
	statusListener := worker.StatusListener(sessionRepo, logger)
	listener := func(job queue.Job) {
		statusListener(job)
		hub.Notify(job)
	}
	jobQueue := queue.New(queue.Config{
		DispatchInterval: cfg.Queue.DispatchInterval,
		RetryCooldown:    cfg.Queue.RetryCooldown,
		CallTimeout:      cfg.AI.CallTimeout,
	}, analysisWorker, listener, logger)
	queueDone := make(chan struct{})
	go func() {
		jobQueue.Run(ctx)
		close(queueDone)
	}()

	// ---- Use cases ----
	sessionUC := usecase.NewSessionUseCase(sessionRepo, store, logger)
	ingestUC := usecase.NewIngestUseCase(usecase.IngestConfig{
		MaxSizeMB:        cfg.Upload.MaxSizeMB,
		AllowedMIMETypes: cfg.Upload.AllowedMIMETypes,
		RatePerMinute:    cfg.Upload.RatePerMinute,
	}, sessionRepo, store, limiter, jobQueue, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.HMACSecret, !cfg.Runtime.Dev, "", cfg.Auth.SessionTTL)
	srv := web.NewServer(sessionUC, ingestUC, auth, hub, cfg.Auth.APIKey, cfg.Server.BaseURL, cfg.Server.JoinPath, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	cancel() // stops the queue; an in-flight analysis is allowed to settle
	select {
	case <-queueDone:
	case <-time.After(cfg.AI.CallTimeout):
		logger.Warn().Msg("queue did not drain in time")
	}
	logger.Info().Msg("bye")
}
