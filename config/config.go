// Package config loads engine configuration from the environment, following
// the same godotenv-backed pattern the rest of this codebase's ancestry
// used: a flat Config struct, typed sub-configs per concern, and
// getEnvX helpers with sane defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds engine-wide configuration.
type Config struct {
	Symbols []string

	Exchange ExchangeConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Risk     RiskConfig
	Timeouts TimeoutConfig
	Webhook  WebhookConfig

	CycleIntervalSeconds int
	APIPort              int
	MetricsPort          int
}

// ExchangeConfig holds futures-exchange connectivity.
type ExchangeConfig struct {
	RESTBaseURL string
	WSURL       string
	APIKey      string
	APISecret   string
}

// DatabaseConfig holds Postgres/TimescaleDB connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// RedisConfig holds cache connection settings.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// LLMConfig holds the optional advisor's configuration. Unchanged shape
// from the teacher's LLMConfig: enabled flag gates the whole collaborator.
type LLMConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	Model    string
}

// RiskConfig holds the §4.M RiskAuditAgent thresholds.
type RiskConfig struct {
	MaxLeverage              float64
	MinStopLossPct           float64
	MaxStopLossPct           float64
	MaxPositionPct           float64
	MaxTotalRiskPct          float64
	MarginUtilizationCap     float64
	StopTradingDrawdownPct   float64
	MaxConsecutiveLosses     int
	RegimeVolatileATRPct     float64
	PositionBottomPercentile float64
	PositionTopPercentile    float64
}

// TimeoutConfig holds the §5 suspension-point timeouts.
type TimeoutConfig struct {
	KlinesSeconds     int
	AuxMetricsSeconds int
	PredictorSeconds  int
	LLMSeconds        int
	OrderSubmitSeconds int
}

// WebhookConfig points at an operator-configured sink for decision and
// risk-block alerts. URL empty disables delivery entirely.
type WebhookConfig struct {
	URL               string
	AuthHeader        string
	AuthValue         string
	MinConfidence     float64
	RetryCount        int
	RetryDelaySeconds int
}

// LoadFromEnv loads configuration from environment variables, falling back
// to a .env file if present.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	symbols := getEnvStringSlice("ENGINE_SYMBOLS", []string{"BTCUSDT", "ETHUSDT"})

	cfg := &Config{
		Symbols: symbols,

		Exchange: ExchangeConfig{
			RESTBaseURL: getEnvOrDefault("EXCHANGE_REST_URL", "https://fapi.example.com"),
			WSURL:       getEnvOrDefault("EXCHANGE_WS_URL", "wss://fstream.example.com/ws"),
			APIKey:      os.Getenv("EXCHANGE_API_KEY"),
			APISecret:   os.Getenv("EXCHANGE_API_SECRET"),
		},

		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Name:     getEnvOrDefault("DB_NAME", "haka_futures"),
			User:     getEnvOrDefault("DB_USER", "haka"),
			Password: getEnvOrDefault("DB_PASSWORD", "haka123"),
		},

		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		},

		LLM: LLMConfig{
			Enabled:  getEnvOrDefault("LLM_ENABLED", "false") == "true",
			Endpoint: getEnvOrDefault("LLM_ENDPOINT", "https://ai.onehub.biz.id/v1"),
			APIKey:   getEnvOrDefault("LLM_API_KEY", ""),
			Model:    getEnvOrDefault("LLM_MODEL", "qwen3-max"),
		},

		Risk: RiskConfig{
			MaxLeverage:              getEnvFloat("RISK_MAX_LEVERAGE", 10.0),
			MinStopLossPct:           getEnvFloat("RISK_MIN_SL_PCT", 0.5),
			MaxStopLossPct:           getEnvFloat("RISK_MAX_SL_PCT", 5.0),
			MaxPositionPct:           getEnvFloat("RISK_MAX_POSITION_PCT", 30.0),
			MaxTotalRiskPct:          getEnvFloat("RISK_MAX_TOTAL_RISK_PCT", 2.0),
			MarginUtilizationCap:     getEnvFloat("RISK_MARGIN_UTILIZATION_CAP", 95.0),
			StopTradingDrawdownPct:   getEnvFloat("RISK_STOP_TRADING_DRAWDOWN_PCT", 10.0),
			MaxConsecutiveLosses:     getEnvInt("RISK_MAX_CONSECUTIVE_LOSSES", 5),
			RegimeVolatileATRPct:     getEnvFloat("REGIME_VOLATILE_ATR_PCT", 1.5),
			PositionBottomPercentile: getEnvFloat("POSITION_BOTTOM_PCT", 30.0),
			PositionTopPercentile:    getEnvFloat("POSITION_TOP_PCT", 70.0),
		},

		Timeouts: TimeoutConfig{
			KlinesSeconds:      getEnvInt("TIMEOUT_KLINES_SECONDS", 5),
			AuxMetricsSeconds:  getEnvInt("TIMEOUT_AUX_SECONDS", 3),
			PredictorSeconds:   getEnvInt("TIMEOUT_PREDICTOR_SECONDS", 2),
			LLMSeconds:         getEnvInt("TIMEOUT_LLM_SECONDS", 6),
			OrderSubmitSeconds: getEnvInt("TIMEOUT_ORDER_SUBMIT_SECONDS", 5),
		},

		Webhook: WebhookConfig{
			URL:               getEnvOrDefault("WEBHOOK_URL", ""),
			AuthHeader:        getEnvOrDefault("WEBHOOK_AUTH_HEADER", ""),
			AuthValue:         getEnvOrDefault("WEBHOOK_AUTH_VALUE", ""),
			MinConfidence:     getEnvFloat("WEBHOOK_MIN_CONFIDENCE", 0),
			RetryCount:        getEnvInt("WEBHOOK_RETRY_COUNT", 3),
			RetryDelaySeconds: getEnvInt("WEBHOOK_RETRY_DELAY_SECONDS", 2),
		},

		CycleIntervalSeconds: getEnvInt("ENGINE_CYCLE_INTERVAL_SECONDS", 60),
		APIPort:              getEnvInt("ENGINE_API_PORT", 8080),
		MetricsPort:          getEnvInt("ENGINE_METRICS_PORT", 9090),
	}

	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("ENGINE_SYMBOLS must resolve to at least one symbol")
	}

	return cfg, nil
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
