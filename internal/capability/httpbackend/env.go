package httpbackend

import (
	"os"
	"strconv"
	"time"
)

// DefaultURL — адрес шлюза для локальной разработки.
const DefaultURL = "http://localhost:9090"

// ConfigFromEnv читает настройки шлюза из окружения:
// CAPABILITY_URL, CAPABILITY_TOKEN, CAPABILITY_TIMEOUT_SEC.
// Некорректный таймаут игнорируется (остаётся значение по умолчанию).
func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL: os.Getenv("CAPABILITY_URL"),
		Token:   os.Getenv("CAPABILITY_TOKEN"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if v := os.Getenv("CAPABILITY_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}
