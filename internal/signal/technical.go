package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"
)

// RSI 经典超卖/超买阈值。
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// TechnicalProvider 基于本地 RSI 指标产生信号，不依赖外部服务，
// 适合离线运行或作为 AI 模式的替代来源。
type TechnicalProvider struct {
	data   MarketData
	period int
	logger *zap.Logger
}

// NewTechnicalProvider 创建技术指标信号来源。
func NewTechnicalProvider(data MarketData, period int, logger *zap.Logger) (*TechnicalProvider, error) {
	if data == nil {
		return nil, errors.New("signal: 行情数据源不能为空")
	}
	if period <= 1 {
		return nil, fmt.Errorf("signal: rsi_period 必须大于1，当前为 %d", period)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TechnicalProvider{
		data:   data,
		period: period,
		logger: logger,
	}, nil
}

// Analyze 根据历史价格计算 RSI 并映射为交易信号。
func (p *TechnicalProvider) Analyze(ctx context.Context, symbol string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	history := p.data.History(symbol)
	if len(history) < p.period+1 {
		return Analysis{
			Symbol:            symbol,
			Decision:          DecisionHold,
			SentimentScore:    0,
			SentimentCategory: "NEUTRAL",
			Reasoning:         fmt.Sprintf("历史样本不足（%d/%d），暂不给出方向", len(history), p.period+1),
			GeneratedAt:       time.Now().UTC(),
		}, nil
	}

	rsiSeries := talib.Rsi(history, p.period)
	rsi := rsiSeries[len(rsiSeries)-1]

	decision := DecisionHold
	switch {
	case rsi <= rsiOversold:
		decision = DecisionBuy
	case rsi >= rsiOverbought:
		decision = DecisionSell
	}

	// RSI 偏离中轴越远，情绪越强：50 映射为 0，0/100 映射为 ±1。
	score := clampScore((50 - rsi) / 50)

	analysis := Analysis{
		Symbol:            symbol,
		Decision:          decision,
		SentimentScore:    score,
		SentimentCategory: CategoryForScore(score),
		Reasoning:         fmt.Sprintf("RSI(%d)=%.2f，超卖线 %.0f / 超买线 %.0f", p.period, rsi, rsiOversold, rsiOverbought),
		GeneratedAt:       time.Now().UTC(),
	}

	p.logger.Debug("技术指标信号生成",
		zap.String("symbol", symbol),
		zap.Float64("rsi", rsi),
		zap.String("decision", string(decision)),
	)

	return analysis, nil
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
