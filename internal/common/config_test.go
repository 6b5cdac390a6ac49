package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.ReportingCurrency != "KRW" {
		t.Errorf("default reporting currency = %s, want KRW", cfg.ReportingCurrency)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if got := cfg.Quotes.GetCacheTTL(); got != 3*time.Minute {
		t.Errorf("default cache TTL = %v, want 3m", got)
	}
	if got := cfg.Quotes.GetRefreshCooldown(); got != 60*time.Second {
		t.Errorf("default refresh cooldown = %v, want 60s", got)
	}
	if cfg.Rates.FallbackUSDKRW <= 0 {
		t.Error("default fallback USD/KRW rate must be positive")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.toml")
	content := `
reporting_currency = "USD"

[server]
port = 9090

[quotes]
cache_ttl = "5m"
batch_workers = 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ReportingCurrency != "USD" {
		t.Errorf("reporting currency = %s, want USD", cfg.ReportingCurrency)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if got := cfg.Quotes.GetCacheTTL(); got != 5*time.Minute {
		t.Errorf("cache TTL = %v, want 5m", got)
	}
	if cfg.Quotes.BatchWorkers != 8 {
		t.Errorf("batch workers = %d, want 8", cfg.Quotes.BatchWorkers)
	}
	// Unset fields keep defaults.
	if cfg.Clients.Naver.BaseURL == "" {
		t.Error("naver base URL default was lost")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ReportingCurrency != "KRW" {
		t.Errorf("reporting currency = %s, want default KRW", cfg.ReportingCurrency)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_PORT", "7070")
	t.Setenv("FOLIO_REPORTING_CURRENCY", "usd")
	t.Setenv("FOLIO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.ReportingCurrency != "USD" {
		t.Errorf("reporting currency = %s, want USD", cfg.ReportingCurrency)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
}

func TestInvalidReportingCurrencyFallsBack(t *testing.T) {
	t.Setenv("FOLIO_REPORTING_CURRENCY", "EUR")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ReportingCurrency != "KRW" {
		t.Errorf("reporting currency = %s, want KRW fallback", cfg.ReportingCurrency)
	}
}

func TestIsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.IsProduction() {
		t.Error("development config should not report production")
	}
	cfg.Environment = "Production"
	if !cfg.IsProduction() {
		t.Error("production config should report production")
	}
}
