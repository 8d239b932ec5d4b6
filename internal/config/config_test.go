package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
catalog:
  ttl: 1m
  batch_delay: bogus
game:
  round_seconds: 20
log:
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.CatalogTTL() != time.Minute {
		t.Fatalf("expected 1m catalog ttl, got %v", cfg.CatalogTTL())
	}
	if cfg.CatalogTimeout() != 10*time.Second {
		t.Fatalf("expected default catalog timeout, got %v", cfg.CatalogTimeout())
	}
	if cfg.BatchDelay() != 200*time.Millisecond {
		t.Fatalf("expected fallback batch delay, got %v", cfg.BatchDelay())
	}
	if cfg.RoundDuration() != 20*time.Second || cfg.RevealDelay() != 2*time.Second {
		t.Fatalf("unexpected game timing: %v / %v", cfg.RoundDuration(), cfg.RevealDelay())
	}
	if cfg.Catalog.BatchSize != 5 || cfg.Catalog.RatePerSecond != 10 || *cfg.Game.FuzzyThreshold != 0.3 || cfg.Game.RoundLength != "standard" {
		t.Fatalf("expected defaults, got %+v / %+v", cfg.Catalog, cfg.Game)
	}
}

func TestZeroFuzzyThresholdIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
catalog:
  timeout: 3s
game:
  fuzzy_threshold: 0
  phonetic_threshold: 0.8
  spoken_fallback_threshold: 0.9
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Game.FuzzyThreshold == nil || *cfg.Game.FuzzyThreshold != 0 {
		t.Fatalf("expected explicit zero threshold, got %v", cfg.Game.FuzzyThreshold)
	}
	if cfg.Game.PhoneticThreshold != 0.8 || cfg.Game.SpokenFallbackThreshold != 0.9 {
		t.Fatalf("unexpected spoken thresholds: %+v", cfg.Game)
	}
	if cfg.CatalogTimeout() != 3*time.Second {
		t.Fatalf("expected 3s catalog timeout, got %v", cfg.CatalogTimeout())
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("TRIVIA_CATALOG_TOKEN", "from-env")
	t.Setenv("TRIVIA_LOG_LEVEL", "debug")
	path := writeConfig(t, `
catalog:
  token: from-file
  base_url: https://api.example
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Catalog.Token != "from-env" || cfg.Log.Level != "debug" {
		t.Fatalf("expected env overrides, got token=%q level=%q", cfg.Catalog.Token, cfg.Log.Level)
	}
	if cfg.Catalog.BaseURL != "https://api.example" {
		t.Fatalf("unset env must keep file value, got %q", cfg.Catalog.BaseURL)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
