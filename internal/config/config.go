package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"studio-notify/internal/db"
)

type AppConfig struct {
	// Marketplace backend
	APIBaseURL  string `env:"API_BASE_URL,required"`
	WSURL       string `env:"WS_URL,required"`
	AccessToken string `env:"ACCESS_TOKEN"`

	// Local bridge
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8090"`
	BridgeToken string `env:"BRIDGE_TOKEN"`

	// Sync
	PageSize          int           `env:"PAGE_SIZE" envDefault:"20"`
	MaxNotifications  int           `env:"MAX_NOTIFICATIONS" envDefault:"100"`
	StatsPollInterval time.Duration `env:"STATS_POLL_INTERVAL" envDefault:"30s"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"2s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// Alert fan-out; disabled when REDIS_ADDR is empty
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisPass    string `env:"REDIS_PASS"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"studio-notify:alerts"`

	// JWT; without a public key the claims are decoded but not verified
	JWTPublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH"`
	JWTIssuer        string `env:"JWT_ISSUER"`
	JWTAudience      string `env:"JWT_AUDIENCE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the optional env files and then the environment into AppConfig.
// Variables already set in the environment win over the files.
func Load(files ...string) (AppConfig, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxNotifications <= 0 {
		return fmt.Errorf("MAX_NOTIFICATIONS must be positive, got %d", c.MaxNotifications)
	}
	if c.StatsPollInterval <= 0 {
		return fmt.Errorf("STATS_POLL_INTERVAL must be positive, got %s", c.StatsPollInterval)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Redis returns the client settings for the alert fan-out.
func (c AppConfig) Redis() db.RedisConfig {
	return db.RedisConfig{
		Addresses: db.ParseAddresses(c.RedisAddr),
		Password:  c.RedisPass,
		DB:        c.RedisDB,
	}
}

// Logger builds the production zap logger at the configured level.
func (c AppConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
