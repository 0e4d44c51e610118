package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// UpstreamConfig 指向招聘后端 REST API。
type UpstreamConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AuthConfig contains token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DirectoryConfig 控制社区目录缓存的刷新周期。
type DirectoryConfig struct {
	RefreshHours int `mapstructure:"refresh_hours"`
}

// Addr builds a go-redis compatible address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Timeout 返回上游请求超时时间。
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("upstream.base_url", "http://localhost:3000")
	v.SetDefault("upstream.timeout_seconds", 15)
	v.SetDefault("directory.refresh_hours", 6)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                 "API_PORT",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
		"upstream.base_url":        "UPSTREAM_BASE_URL",
		"upstream.timeout_seconds": "UPSTREAM_TIMEOUT_SECONDS",
		"auth.jwt_secret":          "JWT_SECRET",
		"directory.refresh_hours":  "DIRECTORY_REFRESH_HOURS",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.Upstream.BaseURL == "" {
		return errors.New("upstream base url is required")
	}
	if cfg.Upstream.TimeoutSeconds <= 0 {
		return errors.New("upstream timeout must be positive")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if cfg.Directory.RefreshHours <= 0 {
		return errors.New("directory refresh hours must be positive")
	}
	return nil
}
