package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SignaturePolicy controls what happens when a webhook signature does not
/// match: strict rejects the event, permissive lets it through flagged as
// unverified behind a stricter idempotency check. Gateway signature formats
// drift across integration versions; this is a deliberate operator choice,
// never a silent default.
type SignaturePolicy string

const (
	SignatureStrict     SignaturePolicy = "strict"
	SignaturePermissive SignaturePolicy = "permissive"
)

type GatewayConfig struct {
	Name            string          `yaml:"name"`
	BaseURL         string          `yaml:"base_url"`
	MerchantID      string          `yaml:"merchant_id"`
	WebhookSecret   string          `yaml:"webhook_secret"`
	SignaturePolicy SignaturePolicy `yaml:"signature_policy"`
}

type BillingConfig struct {
	TaxRateBps     int           `yaml:"tax_rate_bps"` // basis points, e.g. 900 = 9%
	ReaperInterval time.Duration `yaml:"reaper_interval"`
	PendingCutoff  time.Duration `yaml:"pending_cutoff"`
	AuditEpsilon   int64         `yaml:"audit_epsilon"` // minor units
}

type NotifyConfig struct {
	SMTPAddr     string        `yaml:"smtp_addr"`
	From         string        `yaml:"from"`
	RetryURL     string        `yaml:"retry_url"` // base URL for payment retry links
	Interval     time.Duration `yaml:"interval"`  // dispatcher drain interval
	MaxAttempts  int           `yaml:"max_attempts"`
	Workers      int           `yaml:"workers"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TTL       time.Duration `yaml:"ttl"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Billing  BillingConfig  `yaml:"billing"`
	Notify   NotifyConfig   `yaml:"notify"`
	Auth     AuthConfig     `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Gateway.SignaturePolicy == "" {
		cfg.Gateway.SignaturePolicy = SignatureStrict
	}
	if cfg.Billing.ReaperInterval <= 0 {
		cfg.Billing.ReaperInterval = 15 * time.Minute
	}
	if cfg.Billing.PendingCutoff <= 0 {
		cfg.Billing.PendingCutoff = time.Hour
	}
	if cfg.Notify.Interval <= 0 {
		cfg.Notify.Interval = 30 * time.Second
	}
	if cfg.Notify.MaxAttempts <= 0 {
		cfg.Notify.MaxAttempts = 5
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 30 * time.Minute
	}

	// minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Gateway.WebhookSecret == "" && !dev {
		return nil, errors.New("gateway.webhook_secret is required")
	}
	switch cfg.Gateway.SignaturePolicy {
	case SignatureStrict, SignaturePermissive:
	default:
		return nil, fmt.Errorf("gateway.signature_policy must be strict or permissive, got %q", cfg.Gateway.SignaturePolicy)
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
