package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sentitrade/internal/activity"
	"sentitrade/internal/asset"
	"sentitrade/internal/book"
	"sentitrade/internal/feed"
	"sentitrade/internal/risk"
	"sentitrade/internal/signal"
)

// State 表示决策引擎的运行状态。
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// Sink 接收引擎产生的活动事件。
type Sink interface {
	Append(severity activity.Severity, message string)
}

// Config 为引擎运行参数。
type Config struct {
	// TickInterval 为行情刷新与浮动盈亏核算的快周期。
	TickInterval time.Duration
	// DecisionInterval 为信号决策的慢周期。
	DecisionInterval time.Duration
	// SentimentThreshold 为开仓所需的情绪强度下限。
	SentimentThreshold float64
}

// Validate 校验引擎配置。
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return errors.New("engine: tick_interval 必须大于0")
	}
	if c.DecisionInterval <= 0 {
		return errors.New("engine: decision_interval 必须大于0")
	}
	if c.SentimentThreshold < 0 || c.SentimentThreshold >= 1 {
		return errors.New("engine: sentiment_threshold 必须位于[0,1)")
	}
	return nil
}

// Engine 串联行情、信号、风控与账本，驱动两条节奏不同的循环：
// 快周期负责行情刷新与止损核算，慢周期负责信号决策。
// 快周期随进程常驻，慢周期由 Start/Stop 控制。
type Engine struct {
	cfg      Config
	registry *asset.Registry
	feed     *feed.Feed
	provider signal.Provider
	book     *book.Book
	settings *risk.SettingsStore
	sink     Sink
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	analyses map[string]signal.Analysis
}

// New 创建引擎，初始处于 IDLE 状态。
func New(
	cfg Config,
	registry *asset.Registry,
	marketFeed *feed.Feed,
	provider signal.Provider,
	tradeBook *book.Book,
	settings *risk.SettingsStore,
	sink Sink,
	logger *zap.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil || marketFeed == nil || provider == nil || tradeBook == nil || settings == nil || sink == nil {
		return nil, errors.New("engine: 依赖不完整")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:      cfg,
		registry: registry,
		feed:     marketFeed,
		provider: provider,
		book:     tradeBook,
		settings: settings,
		sink:     sink,
		logger:   logger,
		state:    StateIdle,
		analyses: make(map[string]signal.Analysis),
	}, nil
}

// Start 启动决策循环：立即执行一轮，然后按决策周期重复。
// 已处于 RUNNING 状态时为无副作用的幂等操作。
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		e.logger.Debug("引擎已在运行，忽略重复启动")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StateRunning
	e.mu.Unlock()

	e.logger.Info("决策引擎启动", zap.Duration("decision_interval", e.cfg.DecisionInterval))
	e.sink.Append(activity.SeverityInfo, "决策引擎已启动")

	e.wg.Add(1)
	go e.runDecisionLoop(runCtx)
}

// Stop 停止决策循环并等待其退出。未运行时为无副作用的幂等操作。
// 已持有的仓位不会被平掉，行情核算循环继续对其生效。
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateIdle
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	e.logger.Info("决策引擎停止")
	e.sink.Append(activity.SeverityInfo, "决策引擎已停止")
}

// State 返回引擎当前状态。
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Analyses 返回各品种最近一次成功的信号分析快照。
func (e *Engine) Analyses() map[string]signal.Analysis {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]signal.Analysis, len(e.analyses))
	for symbol, analysis := range e.analyses {
		out[symbol] = analysis
	}
	return out
}

// UpdateRiskSettings 更新品种的风控参数，仅影响后续开仓。
func (e *Engine) UpdateRiskSettings(symbol string, settings risk.Settings) error {
	if err := e.settings.Update(symbol, settings); err != nil {
		return err
	}

	e.logger.Info("风控参数已更新",
		zap.String("symbol", symbol),
		zap.Float64("risk_percentage", settings.RiskPercentage),
		zap.Float64("stop_loss_distance", settings.StopLossDistance),
	)
	e.sink.Append(activity.SeverityInfo, fmt.Sprintf(
		"%s 风控参数更新：风险 %.2f%%，止损距离 %.2f",
		symbol, settings.RiskPercentage, settings.StopLossDistance,
	))
	return nil
}

func (e *Engine) storeAnalysis(analysis signal.Analysis) {
	e.mu.Lock()
	e.analyses[analysis.Symbol] = analysis
	e.mu.Unlock()
}
