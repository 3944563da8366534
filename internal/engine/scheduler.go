package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"sentitrade/internal/activity"
	"sentitrade/internal/book"
	"sentitrade/internal/risk"
	"sentitrade/internal/signal"
)

func (e *Engine) runDecisionLoop(ctx context.Context) {
	defer e.wg.Done()

	// 启动后立即执行首轮决策，不等待第一个周期。
	e.decisionCycle(ctx)

	ticker := time.NewTicker(e.cfg.DecisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.decisionCycle(ctx)
		}
	}
}

// decisionCycle 按固定顺序逐个品种决策。
// 单个品种的信号失败只跳过该品种，不影响其余品种与本轮时间戳。
func (e *Engine) decisionCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	e.sink.Append(activity.SeverityInfo, "扫描市场，评估交易信号")

	for _, symbol := range e.registry.Symbols() {
		if ctx.Err() != nil {
			return
		}
		e.processSymbol(ctx, symbol)
	}

	e.book.StampDecisionRun(time.Now().UTC())
}

func (e *Engine) processSymbol(ctx context.Context, symbol string) {
	analysis, err := e.provider.Analyze(ctx, symbol)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		e.logger.Warn("信号获取失败，跳过本轮",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		e.sink.Append(activity.SeverityWarning, fmt.Sprintf("%s 信号获取失败，跳过本轮", symbol))
		return
	}

	e.storeAnalysis(analysis)

	price := e.feed.CurrentPrice(symbol)
	if price <= 0 {
		e.logger.Warn("当前价格无效，跳过本轮", zap.String("symbol", symbol))
		return
	}

	desired, actionable := directionFor(analysis.Decision)

	if open, ok := e.book.OpenTradeFor(symbol); ok {
		// 方向未反转（含 HOLD）时继续持有；
		// 反转信号只负责平仓，新方向的开仓留给后续周期评估。
		if actionable && desired != open.Direction {
			e.closeOnReversal(open, price, analysis.Decision)
		}
		return
	}

	if !actionable {
		return
	}
	if math.Abs(analysis.SentimentScore) <= e.cfg.SentimentThreshold {
		e.logger.Debug("情绪强度不足，放弃开仓",
			zap.String("symbol", symbol),
			zap.Float64("sentiment_score", analysis.SentimentScore),
			zap.Float64("threshold", e.cfg.SentimentThreshold),
		)
		return
	}

	e.openTrade(symbol, desired, price, analysis)
}

// closeOnReversal 平掉与新信号方向相反的持仓。
func (e *Engine) closeOnReversal(open book.Trade, price float64, decision signal.Decision) {
	pnl, err := e.book.CloseTrade(open.ID, price, time.Now().UTC())
	if err != nil {
		// 止损可能恰好先一步平掉该笔交易，属预期竞争。
		if errors.Is(err, book.ErrAlreadyClosed) {
			return
		}
		e.logger.Error("反手平仓失败",
			zap.String("trade_id", open.ID),
			zap.String("symbol", open.Symbol),
			zap.Error(err),
		)
		return
	}

	e.logger.Info("信号反转，平仓",
		zap.String("trade_id", open.ID),
		zap.String("symbol", open.Symbol),
		zap.String("decision", string(decision)),
		zap.Float64("realized_pnl", pnl),
	)
	e.sink.Append(activity.SeveritySuccess, fmt.Sprintf(
		"信号反转平仓：%s %s @ %.2f，盈亏 %+.2f",
		open.Symbol, open.Direction, price, pnl,
	))
}

func (e *Engine) openTrade(symbol string, direction book.Direction, price float64, analysis signal.Analysis) {
	settings, ok := e.settings.Get(symbol)
	if !ok {
		e.logger.Error("缺少风控参数，放弃开仓", zap.String("symbol", symbol))
		return
	}
	a, ok := e.registry.Get(symbol)
	if !ok {
		e.logger.Error("品种未注册，放弃开仓", zap.String("symbol", symbol))
		return
	}

	trade, err := e.book.OpenTrade(symbol, direction, price, settings, a.ContractSize)
	if err != nil {
		switch {
		case errors.Is(err, risk.ErrSizeTooSmall):
			e.logger.Warn("手数过小，放弃开仓",
				zap.String("symbol", symbol),
				zap.Float64("balance", e.book.Ledger().Balance),
			)
			e.sink.Append(activity.SeverityWarning, fmt.Sprintf("%s 手数过小，放弃开仓", symbol))
		case errors.Is(err, book.ErrAlreadyOpen):
			e.logger.Debug("品种已有持仓，放弃开仓", zap.String("symbol", symbol))
		default:
			e.logger.Error("开仓失败", zap.String("symbol", symbol), zap.Error(err))
			e.sink.Append(activity.SeverityError, fmt.Sprintf("%s 开仓失败", symbol))
		}
		return
	}

	e.sink.Append(activity.SeveritySuccess, fmt.Sprintf(
		"开仓：%s %s @ %.2f，手数 %.2f，止损 %.2f（情绪分 %+.2f）",
		trade.Symbol, trade.Direction, trade.EntryPrice, trade.LotSize, trade.StopLossPrice, analysis.SentimentScore,
	))
}

func directionFor(decision signal.Decision) (book.Direction, bool) {
	switch decision {
	case signal.DecisionBuy:
		return book.DirectionLong, true
	case signal.DecisionSell:
		return book.DirectionShort, true
	default:
		return "", false
	}
}
