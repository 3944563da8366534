package engine

import (
	"context"
	"testing"
	"time"

	"sentitrade/internal/book"
	"sentitrade/internal/risk"
)

func TestMarkCycle_UpdatesEquityFromFloatingPnl(t *testing.T) {
	h := newHarness(t, 0.4)

	_, err := h.book.OpenTrade("XAUUSD", book.DirectionLong, 2750,
		risk.Settings{RiskPercentage: 1.0, StopLossDistance: 5}, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	h.gold.setPrice(2752)
	h.engine.markCycle(context.Background())

	ledger := h.book.Ledger()
	if ledger.Balance != 50000 {
		t.Errorf("expected balance untouched at 50000, got %f", ledger.Balance)
	}
	// 浮动盈亏 (2752-2750)*100*1 = 200。
	if ledger.Equity != 50200 {
		t.Errorf("expected equity 50200, got %f", ledger.Equity)
	}

	trade, ok := h.book.OpenTradeFor("XAUUSD")
	if !ok || trade.Status != book.StatusOpen {
		t.Errorf("expected trade to remain open")
	}
}

func TestMarkCycle_StopLossClosesTrade(t *testing.T) {
	h := newHarness(t, 0.4)

	_, err := h.book.OpenTrade("XAUUSD", book.DirectionLong, 2750,
		risk.Settings{RiskPercentage: 1.0, StopLossDistance: 5}, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	h.gold.setPrice(2744)
	h.engine.markCycle(context.Background())

	if _, ok := h.book.OpenTradeFor("XAUUSD"); ok {
		t.Fatalf("expected trade closed by stop loss")
	}

	closed := h.book.AllTrades()[0]
	if closed.Status != book.StatusClosed {
		t.Fatalf("expected status CLOSED, got %s", closed.Status)
	}
	// (2744-2750)*100*1 = -600。
	if closed.RealizedPnl != -600 {
		t.Errorf("expected realized pnl -600, got %f", closed.RealizedPnl)
	}

	ledger := h.book.Ledger()
	if ledger.Balance != 49400 {
		t.Errorf("expected balance 49400, got %f", ledger.Balance)
	}
	// 被止损的交易不计入浮动盈亏，净值等于余额。
	if ledger.Equity != 49400 {
		t.Errorf("expected equity 49400, got %f", ledger.Equity)
	}

	if !h.sink.contains("止损触发") {
		t.Errorf("expected stop-loss activity entry")
	}
}

func TestMarkCycle_ShortStopLoss(t *testing.T) {
	h := newHarness(t, 0.4)

	_, err := h.book.OpenTrade("BTCUSD", book.DirectionShort, 97000,
		risk.Settings{RiskPercentage: 1.0, StopLossDistance: 500}, 1)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	h.btc.setPrice(97500)
	h.engine.markCycle(context.Background())

	if _, ok := h.book.OpenTradeFor("BTCUSD"); ok {
		t.Fatalf("expected short closed when price rises to stop")
	}

	closed := h.book.AllTrades()[0]
	// (97000-97500)*1*1 = -500。
	if closed.RealizedPnl != -500 {
		t.Errorf("expected realized pnl -500, got %f", closed.RealizedPnl)
	}
}

func TestMarkCycle_MixedPortfolio(t *testing.T) {
	h := newHarness(t, 0.4)

	if _, err := h.book.OpenTrade("XAUUSD", book.DirectionLong, 2750,
		risk.Settings{RiskPercentage: 1.0, StopLossDistance: 5}, 100); err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}
	if _, err := h.book.OpenTrade("BTCUSD", book.DirectionLong, 97000,
		risk.Settings{RiskPercentage: 1.0, StopLossDistance: 500}, 1); err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	// 金价触发止损，币价浮盈。
	h.gold.setPrice(2744)
	h.btc.setPrice(98000)
	h.engine.markCycle(context.Background())

	if _, ok := h.book.OpenTradeFor("XAUUSD"); ok {
		t.Errorf("expected gold trade stopped out")
	}
	btcTrade, ok := h.book.OpenTradeFor("BTCUSD")
	if !ok {
		t.Fatalf("expected btc trade to remain open")
	}

	ledger := h.book.Ledger()
	if ledger.Balance != 49400 {
		t.Errorf("expected balance 49400 after gold stop, got %f", ledger.Balance)
	}
	// 净值 = 余额 + BTC 浮盈 (98000-97000)*1*lot。
	expectedEquity := 49400 + btcTrade.FloatingPnl(98000)
	if ledger.Equity != expectedEquity {
		t.Errorf("expected equity %f, got %f", expectedEquity, ledger.Equity)
	}
}

func TestMarkCycle_NoPositions(t *testing.T) {
	h := newHarness(t, 0.4)

	h.engine.markCycle(context.Background())

	ledger := h.book.Ledger()
	if ledger.Balance != 50000 || ledger.Equity != 50000 {
		t.Errorf("expected flat ledger, got %+v", ledger)
	}
}

func TestRunMarkToMarket_ExitsOnCancel(t *testing.T) {
	h := newHarness(t, 0.4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.RunMarkToMarket(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RunMarkToMarket did not exit after cancel")
	}
}
