package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "sentitrade"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.auto_start", false)

	// 账户与品种默认值来自原始仿真参数。
	v.SetDefault("account.initial_balance", 50000.0)
	v.SetDefault("assets", []map[string]interface{}{
		{
			"symbol":                "XAUUSD",
			"display_name":          "Gold vs US Dollar",
			"contract_size":         100.0,
			"default_stop_distance": 5.0,
			"initial_price":         2750.0,
			"source":                "gold",
		},
		{
			"symbol":                "BTCUSD",
			"display_name":          "Bitcoin vs US Dollar",
			"contract_size":         1.0,
			"default_stop_distance": 500.0,
			"initial_price":         97000.0,
			"source":                "binance",
			"market":                "BTC/USDT",
		},
		{
			"symbol":                "ETHUSD",
			"display_name":          "Ethereum vs US Dollar",
			"contract_size":         10.0,
			"default_stop_distance": 25.0,
			"initial_price":         3350.0,
			"source":                "binance",
			"market":                "ETH/USDT",
		},
	})

	v.SetDefault("risk.default_risk_percentage", 1.0)
	v.SetDefault("risk.sentiment_threshold", 0.4)

	v.SetDefault("feed.fetch_timeout", "5s")
	v.SetDefault("feed.history_limit", 500)

	v.SetDefault("signal.mode", "technical")
	v.SetDefault("signal.rsi_period", 14)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4.1")
	v.SetDefault("openai.timeout", "15s")

	v.SetDefault("scheduler.tick_interval", "2s")
	v.SetDefault("scheduler.decision_interval", "30s")

	v.SetDefault("database.path", "data/sentitrade.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("server.port", 8877)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
