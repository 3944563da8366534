package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sentitrade/internal/activity"
	"sentitrade/internal/book"
)

// RunMarkToMarket 运行行情核算循环直到 ctx 取消：刷新全部报价、
// 对持仓执行止损检查、并以最新浮动盈亏刷新净值。
// 该循环随进程常驻，不受引擎 IDLE/RUNNING 状态影响，
// 保证引擎停止后已有持仓的止损保护依然生效。
func (e *Engine) RunMarkToMarket(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.logger.Info("行情核算循环启动", zap.Duration("tick_interval", e.cfg.TickInterval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("行情核算循环退出")
			return
		case <-ticker.C:
			e.markCycle(ctx)
		}
	}
}

// markCycle 执行一轮行情核算。
// 触发止损的交易立即平仓且不计入浮动盈亏；其余持仓的浮动盈亏
// 汇总后一次性写入净值，净值始终等于余额加浮动盈亏。
func (e *Engine) markCycle(ctx context.Context) {
	e.feed.RefreshAll(ctx)

	var floating float64
	for _, trade := range e.book.OpenTrades() {
		price := e.feed.CurrentPrice(trade.Symbol)
		if price <= 0 {
			continue
		}

		if trade.StopBreached(price) {
			e.closeOnStop(trade, price)
			continue
		}

		floating += trade.FloatingPnl(price)
	}

	e.book.RecomputeEquity(floating)
}

func (e *Engine) closeOnStop(trade book.Trade, price float64) {
	pnl, err := e.book.CloseTrade(trade.ID, price, time.Now().UTC())
	if err != nil {
		// 决策循环可能在同一瞬间以反手信号平掉该笔交易，属预期竞争。
		if errors.Is(err, book.ErrAlreadyClosed) {
			return
		}
		e.logger.Error("止损平仓失败",
			zap.String("trade_id", trade.ID),
			zap.String("symbol", trade.Symbol),
			zap.Error(err),
		)
		return
	}

	e.logger.Warn("止损触发",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.Float64("price", price),
		zap.Float64("realized_pnl", pnl),
	)
	e.sink.Append(activity.SeverityWarning, fmt.Sprintf(
		"止损触发：%s %s @ %.2f，盈亏 %+.2f",
		trade.Symbol, trade.Direction, price, pnl,
	))
}
