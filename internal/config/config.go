// Package config reads service settings from the environment (a .env file
// is honoured) and the optional YAML file named by EXPLORER_CONFIG.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fc_explorer/core-go/internal/cache"
	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/farcaster"
	"fc_explorer/core-go/internal/manifest"
	"fc_explorer/core-go/internal/navigation"
)

type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	DatabaseURL     string
	RedisURL        string
	AlchemyAPIKey   string
	AlchemyBaseURL  string
	NeynarAPIKey    string
	NeynarBaseURL   string
	PublicURL       string
	Contract        string
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	UpstreamRPS     float64

	Navigation navigation.Tuning
	Manifest   manifest.Options
}

// File is the layout of the EXPLORER_CONFIG document.
type File struct {
	Navigation yaml.Node        `yaml:"navigation"`
	Manifest   manifest.Options `yaml:"manifest"`
}

// Load reads .env (when present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unset keys take their default.
func FromEnv(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	c := Config{
		HTTPAddr:       env("HTTP_ADDR", ":8081"),
		LogLevel:       env("LOG_LEVEL", "info"),
		LogFormat:      env("LOG_FORMAT", "json"),
		DatabaseURL:    env("DATABASE_URL", ""),
		RedisURL:       env("REDIS_URL", ""),
		AlchemyAPIKey:  env("ALCHEMY_API_KEY", env("NEXT_PUBLIC_ALCHEMY_KEY", "")),
		AlchemyBaseURL: env("ALCHEMY_BASE_URL", chain.DefaultBaseURL),
		NeynarAPIKey:   env("NEYNAR_API_KEY", ""),
		NeynarBaseURL:  env("NEYNAR_BASE_URL", farcaster.DefaultBaseURL),
		PublicURL:      publicURL(env),
		Contract:       env("CONTRACT_ADDRESS", chain.DefaultContract),
		Navigation:     navigation.DefaultTuning(),
	}

	var err error
	if c.CacheTTL, err = duration(env("CACHE_TTL", ""), cache.DefaultTTL); err != nil {
		return Config{}, fmt.Errorf("CACHE_TTL: %w", err)
	}
	if c.RefreshInterval, err = duration(env("REFRESH_INTERVAL", ""), time.Minute); err != nil {
		return Config{}, fmt.Errorf("REFRESH_INTERVAL: %w", err)
	}
	if raw := env("UPSTREAM_RPS", ""); raw != "" {
		if c.UpstreamRPS, err = strconv.ParseFloat(raw, 64); err != nil || c.UpstreamRPS < 0 {
			return Config{}, fmt.Errorf("UPSTREAM_RPS must be a non-negative number, got %q", raw)
		}
	}

	if path := env("EXPLORER_CONFIG", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := c.applyFile(data); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	c.Manifest = c.Manifest.WithDefaults()
	return c, nil
}

func (c *Config) applyFile(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if !f.Navigation.IsZero() {
		raw, err := yaml.Marshal(&f.Navigation)
		if err != nil {
			return fmt.Errorf("navigation: %w", err)
		}
		t, err := navigation.ParseTuning(raw)
		if err != nil {
			return err
		}
		c.Navigation = t
	}
	if err := f.Manifest.Validate(); err != nil {
		return err
	}
	c.Manifest = f.Manifest
	return nil
}

func publicURL(env func(key, fallback string) string) string {
	if v := env("PUBLIC_URL", env("NEXT_PUBLIC_URL", "")); v != "" {
		return strings.TrimRight(v, "/")
	}
	if host := env("VERCEL_PROJECT_PRODUCTION_URL", ""); host != "" {
		return "https://" + host
	}
	return "http://localhost:8081"
}

// duration accepts Go durations ("90s") and bare seconds ("90").
func duration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
