// Package main запускает HTTP-сервер киоска самообслуживания.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/kiosk-system/internal/config"
	"github.com/mmeshcher/kiosk-system/internal/events"
	"github.com/mmeshcher/kiosk-system/internal/handler"
	"github.com/mmeshcher/kiosk-system/internal/metrics"
	"github.com/mmeshcher/kiosk-system/internal/repository"
	"github.com/mmeshcher/kiosk-system/internal/service"
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

	var producer *events.Producer
	if cfg.KafkaBrokers != "" {
		producer = events.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer producer.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	svc := service.NewService(repo, producer, m, logger)

	// Ресторан разрешается по slug один раз на старте: все операции киоска
	// работают в рамках одной точки.
	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Second)
	restaurant, err := repo.GetRestaurantBySlug(startCtx, cfg.RestaurantSlug)
	cancelStart()
	if err != nil {
		sugar.Fatalw("restaurant lookup error", "slug", cfg.RestaurantSlug, "error", err.Error())
	}

	h := handler.NewHandler(svc, logger, restaurant.ID)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting kiosk server", "addr", cfg.RunAddress, "restaurant", restaurant.Slug)
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
