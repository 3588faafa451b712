package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/controllers"
	"tutor/tutor/routes"
	"tutor/tutor/services/llm"
	"tutor/tutor/services/safety"
	"tutor/tutor/services/tutor"
	"tutor/tutor/sources/cache"
	"tutor/tutor/sources/psql"
	"tutor/tutor/sources/psql/dao"
	"tutor/tutor/sources/storage"
	"tutor/tutor/utils/logging"
	"tutor/tutor/utils/metrics"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir, cfg.LogStdout)
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.ErrorLogger.Error("server stopped", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rules, err := safety.LoadRules(cfg.SafetyRulesFile)
	if err != nil {
		return err
	}
	scorer := safety.NewScorer(rules, safety.Options{
		MinScore:     cfg.MinSafetyScore,
		MaxLength:    cfg.SafetyMaxLength,
		StrictIssues: cfg.SafetyStrictIssues,
	})

	registry, err := llm.NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	history, err := cache.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()
	var cachePinger controllers.Pinger
	if history.Enabled() {
		cachePinger = history
	}

	var transcripts storage.TranscriptStore
	minioClient, err := storage.NewMinIOClient(ctx, cfg)
	if err != nil {
		return err
	}
	if minioClient != nil {
		transcripts = minioClient
	}

	m := metrics.New()
	chatCtrl := controllers.NewChatController(controllers.ChatControllerDeps{
		Tutor:        tutor.NewOrchestrator(scorer, registry, m),
		Providers:    registry,
		SessionDAO:   dao.NewChatSessionDAO(db.DB),
		MessageDAO:   dao.NewChatMessageDAO(db.DB),
		History:      history,
		Transcripts:  transcripts,
		HistoryTurns: cfg.HistoryTurns,
	})
	healthCtrl := controllers.NewHealthController(db, cachePinger, registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(routes.RouterDeps{Config: cfg, Chat: chatCtrl, Health: healthCtrl, Metrics: m}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.AppLogger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("default_provider", registry.DefaultName()),
			zap.Bool("cache", history.Enabled()),
			zap.Bool("transcripts", transcripts != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.AppLogger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logging.AppLogger.Info("server shutdown complete")
	return nil
}
