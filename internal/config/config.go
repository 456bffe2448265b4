package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port        string         `json:"port" yaml:"port"`
	Environment string         `json:"environment" yaml:"environment"`
	JWTSecret   string         `json:"jwt_secret" yaml:"jwt_secret"`
	Storage     StorageConfig  `json:"storage" yaml:"storage"`
	Redis       RedisConfig    `json:"redis" yaml:"redis"`
	Postgres    PostgresConfig `json:"postgres" yaml:"postgres"`

	RateLimiting RateLimitConfig `json:"rate_limiting" yaml:"rate_limiting"`
	Services     []ServiceConfig `json:"services" yaml:"services"`
}

type StorageConfig struct {
	Backend   string `json:"backend" yaml:"backend"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// SweepIntervalSeconds controls how often expired counters are deleted
	// from the memory and postgres backends
	SweepIntervalSeconds int `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`

	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
}

type BreakerConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	MaxFailures     int  `json:"max_failures" yaml:"max_failures"`
	CoolDownSeconds int  `json:"cool_down_seconds" yaml:"cool_down_seconds"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

type ServiceConfig struct {
	Name    string   `json:"name" yaml:"name"`
	Path    string   `json:"path" yaml:"path"`
	Targets []string `json:"targets" yaml:"targets"`

	// LoadBalancer names the target selection strategy, round robin by default
	LoadBalancer string `json:"load_balancer" yaml:"load_balancer"`

	// RateLimiting replaces the global block for this service when set
	RateLimiting *RateLimitConfig `json:"rate_limiting,omitempty" yaml:"rate_limiting,omitempty"`
}

// Returns the rate limiting block that applies to the service
func (s ServiceConfig) Limits(global RateLimitConfig) RateLimitConfig {
	if s.RateLimiting != nil {
		return *s.RateLimiting
	}
	return global
}

func Default() *Config {
	return &Config{
		Port:        "8080",
		Environment: "development",
		Storage: StorageConfig{
			Backend:              BackendMemory,
			KeyPrefix:            ratelimit.DefaultKeyPrefix,
			SweepIntervalSeconds: 60,
			Breaker: BreakerConfig{
				MaxFailures:     5,
				CoolDownSeconds: 30,
			},
		},
		Redis: RedisConfig{
			Port: "6379",
		},
		RateLimiting: DefaultRateLimitConfig(),
	}
}

// Load reads a JSON or YAML file, chosen by extension, on top of Default()
// and then applies environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, cfg)
	default:
		err = json.Unmarshal(file, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("RATE_LIMIT_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return NewValidationError("port", "is required")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Host == "" {
			return NewValidationError("redis.host", "is required for the redis backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return NewValidationError("postgres.dsn", "is required for the postgres backend")
		}
	default:
		return NewValidationError("storage.backend", fmt.Sprintf("unknown backend %q", c.Storage.Backend))
	}

	if err := c.RateLimiting.Validate(); err != nil {
		return prefixed("rate_limiting", err)
	}

	if len(c.Services) == 0 {
		return NewValidationError("services", "at least one service is required")
	}

	seen := make(map[string]bool, len(c.Services))
	for i, svc := range c.Services {
		field := fmt.Sprintf("services[%d]", i)
		if svc.Name == "" {
			return NewValidationError(field+".name", "is required")
		}
		if seen[svc.Name] {
			return NewValidationError(field+".name", fmt.Sprintf("duplicate service %q", svc.Name))
		}
		seen[svc.Name] = true

		if !strings.HasPrefix(svc.Path, "/") {
			return NewValidationError(field+".path", "must start with /")
		}
		if len(svc.Targets) == 0 {
			return NewValidationError(field+".targets", "at least one target is required")
		}
		if svc.RateLimiting != nil {
			if err := svc.RateLimiting.Validate(); err != nil {
				return prefixed(field+".rate_limiting", err)
			}
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
