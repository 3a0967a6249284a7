// Package config loads application configuration from a YAML file with
// environment-variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"spot-traderv1/internal/annotate"
	"spot-traderv1/internal/decision"
	"spot-traderv1/internal/exchange"
)

// Config holds the full application configuration.
type Config struct {
	Binance  exchange.Config `yaml:"binance"`
	Trading  TradingConfig   `yaml:"trading"`
	Strategy StrategyConfig  `yaml:"strategy"`
	Storage  StorageConfig   `yaml:"storage"`
	Notify   NotifyConfig    `yaml:"notify"`
	Server   ServerConfig    `yaml:"server"`
}

// TradingConfig holds market selection and risk settings.
type TradingConfig struct {
	Market        string  `yaml:"market"`    // e.g. "BTCUSDT"
	Timeframe     string  `yaml:"timeframe"` // e.g. "1m"
	Autostart     bool    `yaml:"autostart"`
	HistoryLimit  int     `yaml:"history_limit"`
	Retention     int     `yaml:"retention"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	StrategyTag   string  `yaml:"strategy_tag"`
}

// StrategyConfig holds indicator periods and decision thresholds.
type StrategyConfig struct {
	MinHistory     int             `yaml:"min_history"`
	RSIBuy         float64         `yaml:"rsi_buy"`
	RSISell        float64         `yaml:"rsi_sell"`
	RiskFraction   float64         `yaml:"risk_fraction"`
	NotionalMargin float64         `yaml:"notional_margin"`
	Annotate       annotate.Params `yaml:"annotate"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// NotifyConfig holds notification backend credentials.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	WebhookURL     string `yaml:"webhook_url"`
}

// ServerConfig holds listen addresses and logging.
type ServerConfig struct {
	APIAddr     string `yaml:"api_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Load reads configuration from path (if it exists) on top of
// defaults, then applies environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Trading.Autostart && (cfg.Trading.Market == "" || cfg.Trading.Timeframe == "") {
		return nil, fmt.Errorf("autostart requires trading.market and trading.timeframe")
	}
	return cfg, nil
}

func defaults() *Config {
	dp := decision.DefaultParams()
	return &Config{
		Trading: TradingConfig{
			Timeframe:     "1m",
			HistoryLimit:  200,
			Retention:     500,
			TakeProfitPct: 0,
			StopLossPct:   0,
			StrategyTag:   "bb-rsi-macd",
		},
		Strategy: StrategyConfig{
			MinHistory:     dp.MinHistory,
			RSIBuy:         dp.RSIBuy,
			RSISell:        dp.RSISell,
			RiskFraction:   dp.RiskFraction,
			NotionalMargin: dp.NotionalMargin,
			Annotate:       dp.Annotate,
		},
		Storage: StorageConfig{
			SQLitePath: "data/positions.db",
		},
		Server: ServerConfig{
			APIAddr:     ":8080",
			MetricsAddr: ":9090",
			LogLevel:    "info",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Binance.APIKey = getEnv("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.APISecret = getEnv("BINANCE_API_SECRET", cfg.Binance.APISecret)
	cfg.Notify.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Notify.TelegramToken)
	cfg.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", cfg.Notify.TelegramChatID)
	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Storage.SQLitePath = getEnv("SQLITE_PATH", cfg.Storage.SQLitePath)
}

// DecisionParams converts the strategy section to decision engine
// parameters.
func (s StrategyConfig) DecisionParams() decision.Params {
	return decision.Params{
		MinHistory:     s.MinHistory,
		RSIBuy:         s.RSIBuy,
		RSISell:        s.RSISell,
		RiskFraction:   s.RiskFraction,
		NotionalMargin: s.NotionalMargin,
		Annotate:       s.Annotate,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
