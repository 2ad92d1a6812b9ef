package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Buyer    BuyerConfig    `mapstructure:"buyer"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig points at the membership/payments REST API.
type BackendConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Timeout      int    `mapstructure:"timeout"`       // milliseconds
	SessionToken string `mapstructure:"session_token"` // cookie value, from env
}

// GatewayConfig carries the payment-gateway SDK settings.
type GatewayConfig struct {
	MerchantID      string `mapstructure:"merchant_id"`
	CallbackTimeout int    `mapstructure:"callback_timeout"` // milliseconds
	RegistryPath    string `mapstructure:"registry_path"`    // optional provider override file
}

// CheckoutConfig tunes the retry and reconciliation discipline.
type CheckoutConfig struct {
	MaxRetries      int `mapstructure:"max_retries"`
	BaseDelay       int `mapstructure:"base_delay"`        // milliseconds
	StatusInterval  int `mapstructure:"status_interval"`   // milliseconds between status re-queries
	StatusMaxChecks int `mapstructure:"status_max_checks"` // bounded idempotent re-query budget
}

// BuyerConfig is the identity stamped on gateway payloads.
type BuyerConfig struct {
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if cfg.Gateway.MerchantID == "" {
		return fmt.Errorf("gateway.merchant_id is required")
	}
	if cfg.Checkout.MaxRetries < 1 {
		return fmt.Errorf("checkout.max_retries must be at least 1")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "membership-checkout"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10000
	}
	if cfg.Gateway.CallbackTimeout == 0 {
		cfg.Gateway.CallbackTimeout = 300000 // hosted checkout dwell time
	}
	if cfg.Checkout.MaxRetries == 0 {
		cfg.Checkout.MaxRetries = 3
	}
	if cfg.Checkout.BaseDelay == 0 {
		cfg.Checkout.BaseDelay = 1000
	}
	if cfg.Checkout.StatusInterval == 0 {
		cfg.Checkout.StatusInterval = 2000
	}
	if cfg.Checkout.StatusMaxChecks == 0 {
		cfg.Checkout.StatusMaxChecks = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
