package config

import (
	"encoding/hex"
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL  string `env:"DATABASE_URL,required"`
	JWTSecret    string `env:"JWT_SECRET,required"`
	JWTExpiryMin int    `env:"JWT_EXPIRY_MIN" envDefault:"60"`

	// CardEncKey is the hex-encoded AES key for the card number cipher.
	CardEncKey      string `env:"CARD_ENC_KEY,required"`
	CardBIN         string `env:"CARD_BIN" envDefault:"220220"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"RUB"`

	ProvisionMaxAttempts  int `env:"PROVISION_MAX_ATTEMPTS" envDefault:"5"`
	ProvisionRetryDelayMs int `env:"PROVISION_RETRY_DELAY_MS" envDefault:"200"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.EncryptionKey(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// EncryptionKey decodes CARD_ENC_KEY into raw AES key bytes.
func (c *Config) EncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(c.CardEncKey)
	if err != nil {
		return nil, fmt.Errorf("EncryptionKey: CARD_ENC_KEY is not hex: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("EncryptionKey: key must be 16, 24, or 32 bytes, got %d", len(key))
}
