package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Env holds secrets and endpoints that may be supplied through TRIVIA_*
// environment variables instead of the YAML file. Set values win.
type Env struct {
	PostgresURL    string `envconfig:"POSTGRES_URL"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	CatalogBaseURL string `envconfig:"CATALOG_BASE_URL"`
	CatalogToken   string `envconfig:"CATALOG_TOKEN"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
}

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL           string  `yaml:"ttl"`
		File          string  `yaml:"file"`
		BaseURL       string  `yaml:"base_url"`
		Token         string  `yaml:"token"`
		BatchSize     int     `yaml:"batch_size"`
		BatchDelay    string  `yaml:"batch_delay"`
		Timeout       string  `yaml:"timeout"`
		RatePerSecond float64 `yaml:"rate_per_second"`
	} `yaml:"catalog"`
	Game struct {
		RoundSeconds   int      `yaml:"round_seconds"`
		RevealDelay    string   `yaml:"reveal_delay"`
		FuzzyThreshold *float64 `yaml:"fuzzy_threshold"`
		RoundLength    string   `yaml:"round_length"`

		// Spoken answer resolution; zero keeps the built-in defaults.
		PhoneticThreshold       float64 `yaml:"phonetic_threshold"`
		SpokenFallbackThreshold float64 `yaml:"spoken_fallback_threshold"`
	} `yaml:"game"`
	Storage struct {
		BoltPath string `yaml:"bolt_path"`
	} `yaml:"storage"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		// File, when set, receives a rotated copy of the log output.
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"log"`
}

// Load reads YAML config from path and fills in defaults for anything left out.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	var env Env
	if err := envconfig.Process("TRIVIA", &env); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(env Env) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&c.Postgres.URL, env.PostgresURL)
	override(&c.Redis.Addr, env.RedisAddr)
	override(&c.Redis.Password, env.RedisPassword)
	override(&c.Catalog.BaseURL, env.CatalogBaseURL)
	override(&c.Catalog.Token, env.CatalogToken)
	override(&c.Log.Level, env.LogLevel)
}

func (c *Config) applyDefaults() {
	if c.Catalog.BatchSize <= 0 {
		c.Catalog.BatchSize = 5
	}
	if c.Catalog.RatePerSecond == 0 {
		c.Catalog.RatePerSecond = 10
	}
	if c.Game.RoundSeconds <= 0 {
		c.Game.RoundSeconds = 30
	}
	// An explicit 0 in the file means exact matches only.
	if c.Game.FuzzyThreshold == nil {
		threshold := 0.3
		c.Game.FuzzyThreshold = &threshold
	}
	if c.Game.RoundLength == "" {
		c.Game.RoundLength = "standard"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
}

func (c Config) CatalogTTL() time.Duration {
	return Duration(c.Catalog.TTL, 10*time.Minute)
}

func (c Config) BatchDelay() time.Duration {
	return Duration(c.Catalog.BatchDelay, 200*time.Millisecond)
}

// CatalogTimeout bounds one request to the catalog API.
func (c Config) CatalogTimeout() time.Duration {
	return Duration(c.Catalog.Timeout, 10*time.Second)
}

func (c Config) RoundDuration() time.Duration {
	return time.Duration(c.Game.RoundSeconds) * time.Second
}

func (c Config) RevealDelay() time.Duration {
	return Duration(c.Game.RevealDelay, 2*time.Second)
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
