// Package main запускает табло персонала: консольный клиент,
// опрашивающий сервер киоска по выбранному представлению.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/kiosk-system/internal/config"
	"github.com/mmeshcher/kiosk-system/internal/kioskapi"
	"github.com/mmeshcher/kiosk-system/internal/poller"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseDashboard()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	client := kioskapi.NewClient(cfg.KioskAddress)
	fetch := newFetch(client, cfg.View, sugar)

	machine := poller.NewMachine(poller.Config{})
	runner := poller.NewRunner(machine, fetch, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting dashboard", "kiosk", cfg.KioskAddress, "view", cfg.View)
		runner.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("dashboard terminated with error", "error", err)
	}
	sugar.Info("dashboard stopped")
}

// newFetch возвращает функцию опроса для выбранного представления табло.
// Снимок выводится структурированным логом: по записи на заказ.
func newFetch(client *kioskapi.Client, view string, sugar *zap.SugaredLogger) poller.Fetch {
	switch view {
	case config.ViewReady:
		return func(ctx context.Context) error {
			orders, err := client.FetchReady(ctx)
			if err != nil {
				return err
			}
			sugar.Infow("ready orders", "count", len(orders))
			for _, o := range orders {
				sugar.Infow("order",
					"id", o.ID,
					"pickupName", o.PickupName,
					"consumptionMethod", o.ConsumptionMethod,
					"tableNumber", o.TableNumber,
					"items", len(o.Items),
				)
			}
			return nil
		}
	case config.ViewDelivered:
		return func(ctx context.Context) error {
			orders, err := client.FetchDelivered(ctx)
			if err != nil {
				return err
			}
			sugar.Infow("delivered orders", "count", len(orders))
			for _, o := range orders {
				sugar.Infow("order",
					"id", o.ID,
					"pickupName", o.PickupName,
					"deliveredAt", o.DeliveredAt,
					"items", len(o.Items),
				)
			}
			return nil
		}
	default:
		return func(ctx context.Context) error {
			orders, err := client.FetchInProgress(ctx)
			if err != nil {
				return err
			}
			sugar.Infow("kitchen queue", "count", len(orders))
			for _, o := range orders {
				sugar.Infow("order",
					"id", o.ID,
					"status", o.Status,
					"total", o.Total,
					"items", len(o.Items),
				)
			}
			return nil
		}
	}
}
