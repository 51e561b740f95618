// Package config loads process configuration from the environment and, for
// the gateway, the route table from yaml.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	EnvironmentDev  = "dev"
	EnvironmentTest = "test"
	EnvironmentProd = "prod"
)

// Config is the shared process configuration. Infra values live here and are
// passed as typed config into builders; nothing reads the environment after
// startup.
type Config struct {
	ServiceName string `json:"service_name" mapstructure:"service_name"`
	Environment string `json:"environment" mapstructure:"environment"`
	HTTPAddr    string `json:"http_addr" mapstructure:"http_addr"`
	NatsURL     string `json:"nats_url" mapstructure:"nats_url"`
	PostgresURL string `json:"postgres_url" mapstructure:"postgres_url"`
	JWTSecret   string `json:"jwt_secret" mapstructure:"jwt_secret"`
}

// QueueGroup is the durable queue-group name this service's listeners bind
// with. It must stay stable across deploys or the service abandons its queue.
func (c *Config) QueueGroup() string {
	return c.ServiceName
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	switch c.Environment {
	case EnvironmentDev, EnvironmentTest, EnvironmentProd:
	default:
		return fmt.Errorf("invalid environment %q: must be dev, test or prod", c.Environment)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	return nil
}

// Load reads configuration for the named service from the environment.
func Load(serviceName string) (*Config, error) {
	v := viper.New()

	v.SetDefault("service_name", serviceName)
	v.SetDefault("environment", EnvironmentProd)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("postgres_url", "")
	v.SetDefault("jwt_secret", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
