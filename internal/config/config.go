package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	Host        string
	Port        string
	HTTPPort    string
	RecordsPath string
	DBPath      string
	LogLevel    string
	MaxClients  int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		Host:        getEnv("SERVER_HOST", "0.0.0.0"),
		Port:        getEnv("SERVER_PORT", "5678"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		RecordsPath: getEnv("RECORDS_PATH", "records.json"),
		DBPath:      getEnv("DB_PATH", "battleship.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MaxClients:  100,
	}

	if v := os.Getenv("MAX_CLIENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_CLIENTS must be a positive integer, got %q", v)
		}
		cfg.MaxClients = n
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("SERVER_PORT must be numeric, got %q", cfg.Port)
	}

	logger.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("http_port", cfg.HTTPPort).
		Str("records_path", cfg.RecordsPath).
		Str("db_path", cfg.DBPath).
		Str("log_level", cfg.LogLevel).
		Int("max_clients", cfg.MaxClients).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
