package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/internal/app"
	"github.com/testsabirweb/chatsim/internal/config"
	"github.com/testsabirweb/chatsim/pkg/api"
	"github.com/testsabirweb/chatsim/pkg/chat"
	"github.com/testsabirweb/chatsim/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config_load_failed", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		zap.NewExample().Fatal("logger_init_failed", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("server_starting")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := chat.NewHub(a.Session.Snapshot, logger.Named("ws"), a.Metrics)
	go hub.Run(ctx)
	detach := hub.Attach(a.Session)

	server := api.NewServer(api.Options{
		Session:   a.Session,
		Hub:       hub,
		Generator: a.Ollama,
		Metrics:   a.Metrics,
		Logger:    logger.Named("http"),
		RateRPS:   cfg.RateLimit.RPS,
		RateBurst: cfg.RateLimit.Burst,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server_listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server_failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_forced_shutdown", zap.Error(err))
	}

	detach()
	cancel()
	if err := a.Close(); err != nil {
		logger.Error("app_close_failed", zap.Error(err))
	}

	logger.Info("server_exited")
}
