// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	Port            string
	BacktestRateCap int
}

type DatabaseConfig struct {
	URL            string
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers        []string
	ExecutionTopic string
	SnapshotTopic  string
	GroupID        string
}

// Load reads the configuration from the environment, applying defaults for
// everything but the database URL.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			BacktestRateCap: getEnvInt("BACKTEST_RATE_CAP", 5),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			ExecutionTopic: getEnv("KAFKA_EXECUTION_TOPIC", "broker.executions"),
			SnapshotTopic:  getEnv("KAFKA_SNAPSHOT_TOPIC", "portfolio.positions"),
			GroupID:        getEnv("KAFKA_GROUP_ID", "tradedesk"),
		},
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
