package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	RabbitURL     string `env:"RABBITMQ_URL"`

	EventsExchange    string `env:"EXCHANGE_EVENTS" envDefault:"gozon.events"`
	BroadcastExchange string `env:"EXCHANGE_WS" envDefault:"gozon.ws"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxBatchLimit   int           `env:"OUTBOX_BATCH_LIMIT" envDefault:"50"`
	ConsumerPrefetch   int           `env:"CONSUMER_PREFETCH" envDefault:"10"`
}

// Defaults значения по умолчанию, различающиеся между сервисами (orders/payments).
type Defaults struct {
	RunAddress    string
	MigrationsDir string
}

// LoadConfig собирает конфигурацию из переменных окружения и флагов командной строки.
// Значение из окружения имеет приоритет над флагом.
func LoadConfig(defaults Defaults) (*Config, error) {
	var flagsConfig, envConfig Config

	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	loadFlags(&flagsConfig, defaults)

	conf := mergeConfig(&envConfig, &flagsConfig)
	if conf.DatabaseDSN == "" {
		return nil, errors.New("database DSN is not set")
	}
	if conf.RabbitURL == "" {
		return nil, errors.New("rabbitmq URL is not set")
	}
	return conf, nil
}

func MustLoadConfig(defaults Defaults) *Config {
	config, err := LoadConfig(defaults)
	if err != nil {
		panic(err)
	}
	return config
}

func loadFlags(flagConfig *Config, defaults Defaults) {
	flag.StringVar(&flagConfig.RunAddress, "a", defaults.RunAddress, "Run address in format host:port")
	flag.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	flag.StringVar(&flagConfig.MigrationsDir, "m", defaults.MigrationsDir, "Database migrations directory")
	flag.StringVar(&flagConfig.RabbitURL, "r", "", "RabbitMQ URL")

	flag.Parse()
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	merged := *envConfig
	merged.RunAddress = defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress)
	merged.DatabaseDSN = defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN)
	merged.MigrationsDir = defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir)
	merged.RabbitURL = defaultIfBlank(envConfig.RabbitURL, flagsConfig.RabbitURL)
	return &merged
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
