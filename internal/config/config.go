package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type ReplacementConfig struct {
	// ExpiredPolicy controls what happens when a replacement is requested
	// after the original contract's nominal end date: "chain" keeps the
	// normal replacement chain, "fresh" completes the original and starts
	// an unchained contract.
	ExpiredPolicy string
	// TxTimeout bounds the transactional write of a replacement; on
	// expiry the whole operation fails with nothing persisted.
	TxTimeout time.Duration
}

type SignatureConfig struct {
	// WebhookToken is the shared secret the e-signature provider sends in
	// X-Webhook-Token on status callbacks.
	WebhookToken string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Replacement ReplacementConfig
	Signature   SignatureConfig
}

const (
	ExpiredPolicyChain = "chain"
	ExpiredPolicyFresh = "fresh"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Replacement: ReplacementConfig{
			ExpiredPolicy: v.GetString("REPLACEMENT_EXPIRED_POLICY"),
			TxTimeout:     v.GetDuration("REPLACEMENT_TX_TIMEOUT"),
		},
		Signature: SignatureConfig{
			WebhookToken: v.GetString("SIGNATURE_WEBHOOK_TOKEN"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Replacement.ExpiredPolicy == "" {
		cfg.Replacement.ExpiredPolicy = ExpiredPolicyChain
	}
	if cfg.Replacement.TxTimeout == 0 {
		cfg.Replacement.TxTimeout = 5 * time.Second
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Signature.WebhookToken == "" {
		return fmt.Errorf("SIGNATURE_WEBHOOK_TOKEN is required")
	}
	switch cfg.Replacement.ExpiredPolicy {
	case ExpiredPolicyChain, ExpiredPolicyFresh:
	default:
		return fmt.Errorf("REPLACEMENT_EXPIRED_POLICY must be %q or %q", ExpiredPolicyChain, ExpiredPolicyFresh)
	}
	return nil
}
