// Package config содержит логику чтения конфигурации сервиса артстор.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса артстор.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	ChainAPIAddress string `env:"CHAIN_API_ADDRESS"`
	PaymentAddress  string `env:"PAYMENT_ADDRESS"`
	TelegramToken   string `env:"TELEGRAM_TOKEN"`
	BotUsername     string `env:"BOT_USERNAME"`
	AdminChatID     int64  `env:"ADMIN_CHAT_ID"`
	AdminToken      string `env:"ADMIN_TOKEN"`
	AllowedOrigin   string `env:"ALLOWED_ORIGIN"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения; значения окружения имеют приоритет. Файл .env, если есть,
// подгружается до разбора.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envChainAddress := cfg.ChainAPIAddress
	envPaymentAddress := cfg.PaymentAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ChainAPIAddress, "c", "", "chain indexer address")
	flag.StringVar(&cfg.PaymentAddress, "p", "", "payment wallet address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envChainAddress != "" {
		cfg.ChainAPIAddress = envChainAddress
	}
	if envPaymentAddress != "" {
		cfg.PaymentAddress = envPaymentAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
