package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sentitrade/internal/activity"
	"sentitrade/internal/asset"
	"sentitrade/internal/book"
	"sentitrade/internal/config"
	"sentitrade/internal/engine"
	"sentitrade/internal/feed"
	"sentitrade/internal/risk"
	"sentitrade/internal/signal"
	"sentitrade/internal/store"
)

// App 负责组装并托管全部组件的生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	registry    *asset.Registry
	marketFeed  *feed.Feed
	tradeBook   *book.Book
	settings    *risk.SettingsStore
	activityLog *activity.Log
	engine      *engine.Engine

	httpServer *http.Server

	// runCtx 为进程级上下文，/start 指令用它派生决策循环的生命周期。
	runCtx context.Context
}

// New 按配置装配应用。st 提供活动日志的持久化存储。
func New(cfg *config.Config, st *store.Store, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: 配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry, err := asset.NewRegistry(cfg.Assets)
	if err != nil {
		return nil, err
	}

	sources, err := buildSources(cfg, logger)
	if err != nil {
		return nil, err
	}

	marketFeed, err := feed.New(registry, sources, cfg.Feed, logger.Named("feed"))
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg, registry, marketFeed, logger)
	if err != nil {
		return nil, err
	}

	defaults := make(map[string]risk.Settings, len(cfg.Assets))
	for _, a := range cfg.Assets {
		defaults[a.Symbol] = risk.Settings{
			RiskPercentage:   cfg.Risk.DefaultRiskPercentage,
			StopLossDistance: a.DefaultStopDistance,
		}
	}
	settings, err := risk.NewSettingsStore(defaults)
	if err != nil {
		return nil, err
	}

	tradeBook := book.New(cfg.Account.InitialBalance, logger.Named("book"))

	activityLog, err := activity.New(st.DB(), logger.Named("activity"))
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(
		engine.Config{
			TickInterval:       cfg.Scheduler.TickInterval,
			DecisionInterval:   cfg.Scheduler.DecisionInterval,
			SentimentThreshold: cfg.Risk.SentimentThreshold,
		},
		registry,
		marketFeed,
		provider,
		tradeBook,
		settings,
		activityLog,
		logger.Named("engine"),
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		logger:      logger,
		registry:    registry,
		marketFeed:  marketFeed,
		tradeBook:   tradeBook,
		settings:    settings,
		activityLog: activityLog,
		engine:      eng,
	}
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Run 启动全部组件并阻塞到 ctx 取消，随后按依赖顺序收尾。
func (a *App) Run(ctx context.Context) error {
	a.runCtx = ctx

	go a.engine.RunMarkToMarket(ctx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("状态接口启动", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if a.cfg.App.AutoStart {
		a.engine.Start(ctx)
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("状态接口异常退出: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("收到退出信号，开始收尾")

	a.engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("状态接口关闭异常", zap.Error(err))
	}

	a.activityLog.Close()

	a.logger.Info("应用已退出")
	return nil
}

func buildSources(cfg *config.Config, logger *zap.Logger) (map[string]feed.Source, error) {
	sources := make(map[string]feed.Source, len(cfg.Assets))
	for _, a := range cfg.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
		switch strings.ToLower(strings.TrimSpace(a.Source)) {
		case "binance":
			sources[symbol] = feed.NewBinanceSource(a.Market, logger.Named("binance"))
		case "gold":
			sources[symbol] = feed.NewGoldSource(cfg.Feed.FetchTimeout, logger.Named("gold"))
		case "simulated":
			sources[symbol] = feed.NewSimulatedSource(a.InitialPrice)
		default:
			return nil, fmt.Errorf("app: 品种 %s 的报价来源非法: %s", a.Symbol, a.Source)
		}
	}
	return sources, nil
}

func buildProvider(cfg *config.Config, registry *asset.Registry, data signal.MarketData, logger *zap.Logger) (signal.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Signal.Mode)) {
	case "openai":
		return signal.NewOpenAIProvider(cfg.OpenAI, registry, data, logger.Named("signal"))
	case "technical":
		return signal.NewTechnicalProvider(data, cfg.Signal.RSIPeriod, logger.Named("signal"))
	default:
		return nil, fmt.Errorf("app: signal.mode 取值非法: %s", cfg.Signal.Mode)
	}
}
