// Package main запускает HTTP-сервер витрины артстор.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smirnovmax/artstore-system/internal/chain"
	"github.com/smirnovmax/artstore-system/internal/config"
	"github.com/smirnovmax/artstore-system/internal/handler"
	"github.com/smirnovmax/artstore-system/internal/metrics"
	"github.com/smirnovmax/artstore-system/internal/middleware"
	"github.com/smirnovmax/artstore-system/internal/notify"
	"github.com/smirnovmax/artstore-system/internal/repository"
	"github.com/smirnovmax/artstore-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	chainClient := chain.NewClient(cfg.ChainAPIAddress)

	m := metrics.Registry("artstore")

	var sender notify.Sender
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			sugar.Fatalw("telegram initialization error", "error", err.Error())
		}
		sender = tg
	}
	dispatcher := notify.NewDispatcher(sender, logger, m)

	svc := service.NewService(repo, chainClient, dispatcher, m, cfg.PaymentAddress, cfg.AdminChatID)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.TelegramToken)
	h := handler.NewHandler(svc, logger, cfg.BotUsername)

	r := handler.NewRouter(h, authMiddleware, logger, cfg.AdminToken, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting artstore server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
