package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pancake/config"
	"pancake/network"
	"pancake/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()
	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("failed to serve", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

	reg, err := session.New(session.Options{
		Rules:           rules,
		TickInterval:    cfg.TickInterval,
		PublishInterval: cfg.PublishInterval,
		Leaderboard:     session.NewLeaderboard(cfg.LeaderboardSize),
		Logger:          logger.Named("session"),
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	evictCtx, stopEvict := context.WithCancel(ctx)
	defer stopEvict()
	go reg.EvictEvery(evictCtx, min(cfg.IdleTTL, time.Minute), cfg.IdleTTL)

	srv := network.NewServer(reg, network.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		DropRate:        cfg.DropRate,
		DropBurst:       cfg.DropBurst,
		TickInterval:    cfg.TickInterval,
		PublishInterval: cfg.PublishInterval,
		BoardWidth:      rules.BoardWidth,
		Logger:          logger.Named("network"),
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Float64("board_width", rules.BoardWidth))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
