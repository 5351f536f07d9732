package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/etnz/tradebook/agent"
	"github.com/etnz/tradebook/importer"
	"github.com/etnz/tradebook/resolver"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by tbk.
const (
	EnvEODHDKey    = "EODHD_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvGoogleKey   = "GOOGLE_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// Config is the configuration of tbk.
type Config struct {
	Timezone      string         `yaml:"timezone"`
	ImportTimeout time.Duration  `yaml:"importTimeout"`
	DatabaseURL   string         `yaml:"databaseURL"`
	Resolver      ResolverConfig `yaml:"resolver"`
	EODHD         struct {
		CacheDir string `yaml:"cacheDir"`
	} `yaml:"eodhd"`
	Gemini struct {
		Model  string `yaml:"model"`
		Search bool   `yaml:"search"`
	} `yaml:"gemini"`

	// secrets are only read from the environment.
	EODHDKey  string `yaml:"-"`
	GeminiKey string `yaml:"-"`
}

// ResolverConfig tunes the identifier resolution.
type ResolverConfig struct {
	Interval          time.Duration   `yaml:"interval"`
	MaxAttempts       int             `yaml:"maxAttempts"`
	Backoffs          []time.Duration `yaml:"backoffs"`
	VisibilityTimeout time.Duration   `yaml:"visibilityTimeout"`
	CacheTTL          time.Duration   `yaml:"cacheTTL"`
	BatchSize         int             `yaml:"batchSize"`
	Priority          int             `yaml:"priority"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	p := resolver.DefaultPolicy()
	c := Config{
		Timezone:      "UTC",
		ImportTimeout: importer.DefaultTimeout,
		Resolver: ResolverConfig{
			Interval:          time.Minute,
			MaxAttempts:       p.MaxAttempts,
			Backoffs:          p.Backoffs,
			VisibilityTimeout: p.VisibilityTimeout,
			CacheTTL:          resolver.DefaultTTL[resolver.KindCUSIP],
			BatchSize:         50,
		},
	}
	c.Gemini.Model = agent.DefaultModel
	return c
}

// LoadConfig reads the .env file if any, the YAML file 'path' if not empty,
// and the environment.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("cannot read .env: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("cannot read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("cannot decode config %q: %w", path, err)
		}
	}
	c.EODHDKey = os.Getenv(EnvEODHDKey)
	c.GeminiKey = os.Getenv(EnvGeminiKey)
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv(EnvGoogleKey)
	}
	if url := os.Getenv(EnvDatabaseURL); url != "" {
		c.DatabaseURL = url
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Resolver.Interval <= 0 {
		return fmt.Errorf("invalid resolver interval %v", c.Resolver.Interval)
	}
	if c.Resolver.MaxAttempts <= 0 {
		return fmt.Errorf("invalid resolver max attempts %d", c.Resolver.MaxAttempts)
	}
	return nil
}

// Location returns the timezone of the exports timestamps.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Policy returns the resolution queue policy.
func (c Config) Policy() resolver.Policy {
	return resolver.Policy{
		Backoffs:          c.Resolver.Backoffs,
		MaxAttempts:       c.Resolver.MaxAttempts,
		VisibilityTimeout: c.Resolver.VisibilityTimeout,
	}
}

// TTL returns the cache time to live per kind.
func (c Config) TTL() map[resolver.Kind]time.Duration {
	return map[resolver.Kind]time.Duration{resolver.KindCUSIP: c.Resolver.CacheTTL}
}
