package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config carries every tunable of the bot. Values come from environment
// variables (DEXARB_ prefix), an optional dexarb.yaml, and defaults, in that
// order of precedence.
type Config struct {
	RPCURL     string
	PrivateKey string

	MinVolumeQuote   decimal.Decimal
	MinProfitPercent decimal.Decimal
	MaxSlippage      float64

	ScanInterval time.Duration
	ExecWindow   time.Duration
	AutoMode     bool
	MaxPairs     int
	RPCRateLimit float64

	StatsPath string
	CachePath string
	LogLevel  string
}

func Load() (*Config, error) {
	// .env is optional, real env always wins
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DEXARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc_url", "")
	v.SetDefault("private_key", "")
	v.SetDefault("min_volume_quote", "25000")
	v.SetDefault("min_profit_percent", "0")
	v.SetDefault("max_slippage", 0.01)
	v.SetDefault("scan_interval", "5s")
	v.SetDefault("exec_window", "4m")
	v.SetDefault("auto_mode", false)
	v.SetDefault("max_pairs", 1000)
	v.SetDefault("rpc_rate_limit", 20.0)
	v.SetDefault("stats_path", "data/stats.json")
	v.SetDefault("cache_path", "data/discovery.db")
	v.SetDefault("log_level", "info")

	v.SetConfigName("dexarb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	minVolume, err := decimal.NewFromString(v.GetString("min_volume_quote"))
	if err != nil {
		return nil, fmt.Errorf("parse min_volume_quote: %w", err)
	}
	minProfit, err := decimal.NewFromString(v.GetString("min_profit_percent"))
	if err != nil {
		return nil, fmt.Errorf("parse min_profit_percent: %w", err)
	}

	cfg := &Config{
		RPCURL:           v.GetString("rpc_url"),
		PrivateKey:       v.GetString("private_key"),
		MinVolumeQuote:   minVolume,
		MinProfitPercent: minProfit,
		MaxSlippage:      v.GetFloat64("max_slippage"),
		ScanInterval:     v.GetDuration("scan_interval"),
		ExecWindow:       v.GetDuration("exec_window"),
		AutoMode:         v.GetBool("auto_mode"),
		MaxPairs:         v.GetInt("max_pairs"),
		RPCRateLimit:     v.GetFloat64("rpc_rate_limit"),
		StatsPath:        v.GetString("stats_path"),
		CachePath:        v.GetString("cache_path"),
		LogLevel:         v.GetString("log_level"),
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("DEXARB_RPC_URL not set")
	}

	return cfg, nil
}
