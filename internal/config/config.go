// Package config содержит логику чтения конфигурации сервиса киоска.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации HTTP-сервера киоска.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	RestaurantSlug string `env:"RESTAURANT_SLUG"`
	KafkaBrokers   string `env:"KAFKA_BROKERS"`
	KafkaTopic     string `env:"KAFKA_TOPIC"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRestaurantSlug := cfg.RestaurantSlug
	envKafkaBrokers := cfg.KafkaBrokers
	envKafkaTopic := cfg.KafkaTopic

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RestaurantSlug, "s", "fsw-donalds", "restaurant slug")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "kafka brokers (comma-separated, optional)")
	flag.StringVar(&cfg.KafkaTopic, "t", "kiosk.orders", "kafka topic for order events")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRestaurantSlug != "" {
		cfg.RestaurantSlug = envRestaurantSlug
	}
	if envKafkaBrokers != "" {
		cfg.KafkaBrokers = envKafkaBrokers
	}
	if envKafkaTopic != "" {
		cfg.KafkaTopic = envKafkaTopic
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.RestaurantSlug == "" {
		cfg.RestaurantSlug = "fsw-donalds"
	}

	return cfg, nil
}
