package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Account   AccountConfig   `mapstructure:"account"`
	Assets    []AssetConfig   `mapstructure:"assets"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Signal    SignalConfig    `mapstructure:"signal"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	// AutoStart 为 true 时进程启动后立即进入 RUNNING 状态，
	// 否则等待外部 /start 指令。
	AutoStart bool `mapstructure:"auto_start"`
}

// AccountConfig 描述模拟账户的初始资金。
type AccountConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
}

// AssetConfig 描述单个可交易品种的静态参数，启动后不再变更。
type AssetConfig struct {
	Symbol              string  `mapstructure:"symbol"`
	DisplayName         string  `mapstructure:"display_name"`
	ContractSize        float64 `mapstructure:"contract_size"`
	DefaultStopDistance float64 `mapstructure:"default_stop_distance"`
	InitialPrice        float64 `mapstructure:"initial_price"`
	// Source 指定报价来源：binance | gold | simulated。
	Source string `mapstructure:"source"`
	// Market 为报价来源使用的市场符号（如 BTC/USDT），simulated 来源可留空。
	Market string `mapstructure:"market"`
}

// RiskConfig 管理风控默认参数。
type RiskConfig struct {
	// DefaultRiskPercentage 为每个品种初始的单笔风险比例（百分数，(0,100]）。
	DefaultRiskPercentage float64 `mapstructure:"default_risk_percentage"`
	// SentimentThreshold 为开仓所需的情绪强度下限（归一化 [0,1]）。
	SentimentThreshold float64 `mapstructure:"sentiment_threshold"`
}

// FeedConfig 控制行情抓取行为。
type FeedConfig struct {
	// FetchTimeout 为单个品种单次抓取的超时上限。
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// HistoryLimit 为每个品种保留的历史报价条数。
	HistoryLimit int `mapstructure:"history_limit"`
}

// SignalConfig 选择信号来源。
type SignalConfig struct {
	// Mode 取值：openai | technical。technical 使用本地 RSI 指标，无需外部服务。
	Mode string `mapstructure:"mode"`
	// RSIPeriod 为 technical 模式下的 RSI 周期。
	RSIPeriod int `mapstructure:"rsi_period"`
}

// OpenAIConfig 描述大模型调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig 控制两条循环的节奏。
type SchedulerConfig struct {
	// TickInterval 为行情刷新与浮动盈亏核算的快周期。
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// DecisionInterval 为信号决策的慢周期。
	DecisionInterval time.Duration `mapstructure:"decision_interval"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ServerConfig 控制状态查询接口。
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

var validSources = map[string]struct{}{
	"binance":   {},
	"gold":      {},
	"simulated": {},
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Account.InitialBalance <= 0 {
		err = multierr.Append(err, errors.New("account.initial_balance 必须大于0"))
	}
	if len(c.Assets) == 0 {
		err = multierr.Append(err, errors.New("assets 至少需要一个品种"))
	}

	seen := make(map[string]struct{}, len(c.Assets))
	for i, a := range c.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if symbol == "" {
			err = multierr.Append(err, fmt.Errorf("assets[%d].symbol 不能为空", i))
			continue
		}
		if _, dup := seen[symbol]; dup {
			err = multierr.Append(err, fmt.Errorf("assets 中存在重复品种 %s", symbol))
		}
		seen[symbol] = struct{}{}

		if a.ContractSize <= 0 {
			err = multierr.Append(err, fmt.Errorf("assets[%s].contract_size 必须大于0", symbol))
		}
		if a.DefaultStopDistance <= 0 {
			err = multierr.Append(err, fmt.Errorf("assets[%s].default_stop_distance 必须大于0", symbol))
		}
		if a.InitialPrice <= 0 {
			err = multierr.Append(err, fmt.Errorf("assets[%s].initial_price 必须大于0", symbol))
		}

		source := strings.ToLower(strings.TrimSpace(a.Source))
		if _, ok := validSources[source]; !ok {
			err = multierr.Append(err, fmt.Errorf("assets[%s].source 取值非法: %s", symbol, a.Source))
		}
		if source == "binance" && strings.TrimSpace(a.Market) == "" {
			err = multierr.Append(err, fmt.Errorf("assets[%s] 使用 binance 来源时 market 不能为空", symbol))
		}
	}

	if c.Risk.DefaultRiskPercentage <= 0 || c.Risk.DefaultRiskPercentage > 100 {
		err = multierr.Append(err, errors.New("risk.default_risk_percentage 必须位于(0,100]"))
	}
	if c.Risk.SentimentThreshold < 0 || c.Risk.SentimentThreshold >= 1 {
		err = multierr.Append(err, errors.New("risk.sentiment_threshold 必须位于[0,1)"))
	}
	if c.Feed.FetchTimeout <= 0 {
		err = multierr.Append(err, errors.New("feed.fetch_timeout 必须大于0"))
	}
	if c.Feed.HistoryLimit <= 0 {
		err = multierr.Append(err, errors.New("feed.history_limit 必须大于0"))
	}

	mode := strings.ToLower(strings.TrimSpace(c.Signal.Mode))
	switch mode {
	case "openai":
		if c.OpenAI.APIKey == "" {
			err = multierr.Append(err, errors.New("signal.mode=openai 时 openai.api_key 不能为空"))
		}
		if c.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("openai.model 不能为空"))
		}
		if c.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
		}
	case "technical":
		if c.Signal.RSIPeriod <= 1 {
			err = multierr.Append(err, errors.New("signal.rsi_period 必须大于1"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("signal.mode 取值非法: %s", c.Signal.Mode))
	}

	if c.Scheduler.TickInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.tick_interval 必须大于0"))
	}
	if c.Scheduler.DecisionInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.decision_interval 必须大于0"))
	}
	if c.Scheduler.DecisionInterval < c.Scheduler.TickInterval {
		err = multierr.Append(err, errors.New("scheduler.decision_interval 不应小于 tick_interval"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须为合法端口"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
