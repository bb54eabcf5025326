package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
	Provider ProviderConfig
	Bridge   BridgeConfig
	Queue    QueueConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// DispatchConfig bounds the fan-out: worker count, provider rate limit and
// the per-send timeout.
type DispatchConfig struct {
	Workers     int
	RatePerSec  int
	SendTimeout time.Duration
}

// ProviderConfig points at the messaging provider's webhook. Empty URL means
// the in-process channel client is unavailable (campaigns abort unless the
// bridge is configured).
type ProviderConfig struct {
	WebhookURL string
}

// BridgeConfig configures the remote-credential deployment variant. On the
// console side BaseURL+Secret select the bridge channel client; on the
// bridge host Address is the listen address for cmd/bridge.
type BridgeConfig struct {
	BaseURL string
	Secret  string
	Address string
}

type QueueConfig struct {
	// AMQPURL selects the RabbitMQ trigger transport; empty falls back to
	// the in-memory queue (single-binary mode).
	AMQPURL string
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Dispatch: DispatchConfig{
			Workers:     getEnvInt("DISPATCH_WORKERS", 4),
			RatePerSec:  getEnvInt("DISPATCH_RATE_PER_SEC", 10),
			SendTimeout: time.Duration(getEnvInt("DISPATCH_SEND_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Provider: ProviderConfig{
			WebhookURL: os.Getenv("PROVIDER_WEBHOOK_URL"),
		},
		Bridge: BridgeConfig{
			BaseURL: os.Getenv("BRIDGE_BASE_URL"),
			Secret:  os.Getenv("BRIDGE_SECRET"),
			Address: getEnv("BRIDGE_ADDRESS", ":8090"),
		},
		Queue: QueueConfig{
			AMQPURL: os.Getenv("AMQP_URL"),
		},
		Redis: loadRedisConfig(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 60)) * time.Second,
	}
}

func validate(cfg *Config) error {
	if cfg.Dispatch.Workers <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS must be > 0")
	}
	if cfg.Dispatch.RatePerSec <= 0 {
		return fmt.Errorf("DISPATCH_RATE_PER_SEC must be > 0")
	}
	if cfg.Dispatch.SendTimeout <= 0 {
		return fmt.Errorf("DISPATCH_SEND_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Bridge.BaseURL != "" && cfg.Bridge.Secret == "" {
		return fmt.Errorf("BRIDGE_SECRET is required when BRIDGE_BASE_URL is set")
	}
	return nil
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
