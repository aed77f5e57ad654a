package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Представления табло персонала.
const (
	ViewQueue     = "queue"
	ViewReady     = "ready"
	ViewDelivered = "delivered"
)

// DashboardConfig содержит параметры конфигурации табло персонала.
type DashboardConfig struct {
	KioskAddress string `env:"KIOSK_ADDRESS"`
	View         string `env:"DASHBOARD_VIEW"`
}

// ParseDashboard считывает конфигурацию табло из флагов командной строки
// и переменных окружения.
func ParseDashboard() (*DashboardConfig, error) {
	cfg := &DashboardConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envKioskAddress := cfg.KioskAddress
	envView := cfg.View

	flag.StringVar(&cfg.KioskAddress, "a", "localhost:8080", "kiosk server address")
	flag.StringVar(&cfg.View, "v", ViewQueue, "dashboard view: queue, ready or delivered")

	flag.Parse()

	if envKioskAddress != "" {
		cfg.KioskAddress = envKioskAddress
	}
	if envView != "" {
		cfg.View = envView
	}

	switch cfg.View {
	case ViewQueue, ViewReady, ViewDelivered:
	default:
		return nil, fmt.Errorf("unknown dashboard view: %s", cfg.View)
	}

	return cfg, nil
}
