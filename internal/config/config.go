// Package config defines configuration for both the exchange and the
// agent platform. Config is loaded from a YAML file with sensitive
// fields overridable via EXCHSIM_* environment variables, following
// 0xtitan6-polymarket-mm/internal/config/config.go's Load/Validate shape.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ExchangeConfig is the top-level configuration for cmd/exchange.
type ExchangeConfig struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AgentPlatformConfig is the top-level configuration for cmd/agentplatform.
type AgentPlatformConfig struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Exchange ExchangeClient `mapstructure:"exchange"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig selects the gorm backend; Driver is "sqlite" or "postgres".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	Pepper     string `mapstructure:"pepper"`
	AdminToken string `mapstructure:"admin_token"`
}

type ExchangeClient struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const envPrefix = "EXCHSIM"

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return v, nil
}

// LoadExchange reads the exchange service's config from path.
func LoadExchange(path string) (*ExchangeConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	var cfg ExchangeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if pepper := os.Getenv(envPrefix + "_AUTH_PEPPER"); pepper != "" {
		cfg.Auth.Pepper = pepper
	}
	if token := os.Getenv(envPrefix + "_AUTH_ADMIN_TOKEN"); token != "" {
		cfg.Auth.AdminToken = token
	}
	return &cfg, cfg.Validate()
}

// LoadAgentPlatform reads the agent platform's config from path.
func LoadAgentPlatform(path string) (*AgentPlatformConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	var cfg AgentPlatformConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, cfg.Validate()
}

func (c *ExchangeConfig) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return fmt.Errorf("store.driver must be sqlite or postgres")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if c.Auth.Pepper == "" {
		return fmt.Errorf("auth.pepper is required (set EXCHSIM_AUTH_PEPPER)")
	}
	if c.Auth.AdminToken == "" {
		return fmt.Errorf("auth.admin_token is required (set EXCHSIM_AUTH_ADMIN_TOKEN)")
	}
	return nil
}

func (c *AgentPlatformConfig) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.Exchange.Timeout <= 0 {
		c.Exchange.Timeout = 5 * time.Second
	}
	return nil
}
