package config

import (
	"os"
	"testing"
)

func clearEngineEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"ENGINE_SYMBOLS", "EXCHANGE_REST_URL", "DB_PORT", "RISK_MAX_LEVERAGE",
		"ENGINE_CYCLE_INTERVAL_SECONDS", "LLM_ENABLED", "WEBHOOK_URL",
	}
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, orig)
			}
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEngineEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "BTCUSDT" || cfg.Symbols[1] != "ETHUSDT" {
		t.Fatalf("Symbols = %v, want default [BTCUSDT ETHUSDT]", cfg.Symbols)
	}
	if cfg.Risk.MaxLeverage != 10.0 {
		t.Fatalf("Risk.MaxLeverage = %v, want default 10.0", cfg.Risk.MaxLeverage)
	}
	if cfg.CycleIntervalSeconds != 60 {
		t.Fatalf("CycleIntervalSeconds = %v, want default 60", cfg.CycleIntervalSeconds)
	}
	if cfg.LLM.Enabled {
		t.Fatal("LLM.Enabled should default to false")
	}
	if cfg.Webhook.URL != "" {
		t.Fatalf("Webhook.URL = %q, want empty by default (delivery disabled)", cfg.Webhook.URL)
	}
}

func TestLoadFromEnvOverridesAndUppercasesSymbols(t *testing.T) {
	clearEngineEnv(t)
	os.Setenv("ENGINE_SYMBOLS", "btcusdt, ethusdt ,solusdt")
	os.Setenv("RISK_MAX_LEVERAGE", "20")
	os.Setenv("ENGINE_CYCLE_INTERVAL_SECONDS", "30")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(cfg.Symbols) != len(want) {
		t.Fatalf("Symbols = %v, want %v", cfg.Symbols, want)
	}
	for i, s := range want {
		if cfg.Symbols[i] != s {
			t.Fatalf("Symbols[%d] = %q, want %q", i, cfg.Symbols[i], s)
		}
	}
	if cfg.Risk.MaxLeverage != 20 {
		t.Fatalf("Risk.MaxLeverage = %v, want 20", cfg.Risk.MaxLeverage)
	}
	if cfg.CycleIntervalSeconds != 30 {
		t.Fatalf("CycleIntervalSeconds = %v, want 30", cfg.CycleIntervalSeconds)
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	os.Setenv("TEST_GARBAGE_INT", "not-a-number")
	defer os.Unsetenv("TEST_GARBAGE_INT")
	if got := getEnvInt("TEST_GARBAGE_INT", 42); got != 42 {
		t.Fatalf("getEnvInt() = %d, want fallback 42", got)
	}
}

func TestGetEnvStringSliceEmptyFallsBackToDefault(t *testing.T) {
	os.Setenv("TEST_EMPTY_SLICE", "  , ,")
	defer os.Unsetenv("TEST_EMPTY_SLICE")
	got := getEnvStringSlice("TEST_EMPTY_SLICE", []string{"DEFAULT"})
	if len(got) != 1 || got[0] != "DEFAULT" {
		t.Fatalf("getEnvStringSlice() = %v, want fallback [DEFAULT]", got)
	}
}
