package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		PollTimeout int    `envconfig:"TG_POLL_TIMEOUT" default:"30"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Limits struct {
		Workers        int           `envconfig:"UPDATE_WORKERS" default:"8"`
		MinPhotoHeight int           `envconfig:"MIN_PHOTO_HEIGHT" default:"320"`
		ModeCacheTTL   time.Duration `envconfig:"MODE_CACHE_TTL" default:"30s"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
