package book

import (
	"errors"
	"sync"
	"testing"
	"time"

	"sentitrade/internal/risk"
)

var goldSettings = risk.Settings{RiskPercentage: 1.0, StopLossDistance: 5.0}

func TestOpenTrade_Baseline(t *testing.T) {
	b := New(50000, nil)

	trade, err := b.OpenTrade("XAUUSD", DirectionLong, 2750, goldSettings, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	if trade.ID == "" {
		t.Errorf("expected non-empty trade id")
	}
	if trade.LotSize != 1.00 {
		t.Errorf("expected lotSize=1.00, got %f", trade.LotSize)
	}
	if trade.StopLossPrice != 2745 {
		t.Errorf("expected stopLossPrice=2745, got %f", trade.StopLossPrice)
	}
	if trade.Status != StatusOpen {
		t.Errorf("expected status OPEN, got %s", trade.Status)
	}
	if trade.ContractSize != 100 {
		t.Errorf("expected contract size snapshot 100, got %f", trade.ContractSize)
	}

	// 开仓不动余额。
	ledger := b.Ledger()
	if ledger.Balance != 50000 {
		t.Errorf("expected balance unchanged at 50000, got %f", ledger.Balance)
	}
}

func TestOpenTrade_RejectsSecondOpenForSymbol(t *testing.T) {
	b := New(50000, nil)

	if _, err := b.OpenTrade("XAUUSD", DirectionLong, 2750, goldSettings, 100); err != nil {
		t.Fatalf("first OpenTrade returned error: %v", err)
	}

	_, err := b.OpenTrade("XAUUSD", DirectionShort, 2750, goldSettings, 100)
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}

	if got := len(b.AllTrades()); got != 1 {
		t.Errorf("expected exactly 1 trade recorded, got %d", got)
	}
}

func TestOpenTrade_SizeTooSmallLeavesStateUntouched(t *testing.T) {
	b := New(1, nil)

	_, err := b.OpenTrade("BTCUSD", DirectionLong, 97000, risk.Settings{RiskPercentage: 0.01, StopLossDistance: 500}, 1)
	if !errors.Is(err, risk.ErrSizeTooSmall) {
		t.Fatalf("expected ErrSizeTooSmall, got %v", err)
	}

	if got := len(b.AllTrades()); got != 0 {
		t.Errorf("expected no trade recorded, got %d", got)
	}
	if _, ok := b.OpenTradeFor("BTCUSD"); ok {
		t.Errorf("expected no open trade for symbol")
	}
}

func TestCloseTrade_RealizesPnlIntoBalance(t *testing.T) {
	b := New(50000, nil)

	trade, err := b.OpenTrade("XAUUSD", DirectionLong, 2750, goldSettings, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	pnl, err := b.CloseTrade(trade.ID, 2744, time.Now())
	if err != nil {
		t.Fatalf("CloseTrade returned error: %v", err)
	}
	// (2744-2750) * 100 * 1.00 = -600
	if pnl != -600 {
		t.Errorf("expected pnl=-600, got %f", pnl)
	}

	ledger := b.Ledger()
	if ledger.Balance != 49400 {
		t.Errorf("expected balance 49400, got %f", ledger.Balance)
	}

	closed := b.AllTrades()[0]
	if closed.Status != StatusClosed {
		t.Errorf("expected status CLOSED, got %s", closed.Status)
	}
	if closed.RealizedPnl != -600 {
		t.Errorf("expected realized pnl -600, got %f", closed.RealizedPnl)
	}
	if closed.ClosePrice != 2744 {
		t.Errorf("expected close price 2744, got %f", closed.ClosePrice)
	}
}

func TestCloseTrade_Idempotent(t *testing.T) {
	b := New(50000, nil)

	trade, err := b.OpenTrade("XAUUSD", DirectionShort, 2750, goldSettings, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	if _, err := b.CloseTrade(trade.ID, 2740, time.Now()); err != nil {
		t.Fatalf("first CloseTrade returned error: %v", err)
	}
	balanceAfterFirst := b.Ledger().Balance

	_, err = b.CloseTrade(trade.ID, 2700, time.Now())
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
	if got := b.Ledger().Balance; got != balanceAfterFirst {
		t.Errorf("second close mutated balance: %f vs %f", got, balanceAfterFirst)
	}

	closed := b.AllTrades()[0]
	if closed.ClosePrice != 2740 {
		t.Errorf("second close mutated close price: %f", closed.ClosePrice)
	}
}

func TestCloseTrade_NotFound(t *testing.T) {
	b := New(50000, nil)

	_, err := b.CloseTrade("missing", 100, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseTrade_ConcurrentExactlyOneWins(t *testing.T) {
	b := New(50000, nil)

	trade, err := b.OpenTrade("XAUUSD", DirectionLong, 2750, goldSettings, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}

	const racers = 8
	results := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = b.CloseTrade(trade.ID, 2745, time.Now())
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyClosed):
		default:
			t.Errorf("unexpected close error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful close, got %d", wins)
	}

	// (2745-2750)*100 = -500，只能入账一次。
	if got := b.Ledger().Balance; got != 49500 {
		t.Errorf("expected balance 49500, got %f", got)
	}
}

func TestReopenAfterClose(t *testing.T) {
	b := New(50000, nil)

	first, err := b.OpenTrade("XAUUSD", DirectionLong, 2750, goldSettings, 100)
	if err != nil {
		t.Fatalf("OpenTrade returned error: %v", err)
	}
	if _, err := b.CloseTrade(first.ID, 2755, time.Now()); err != nil {
		t.Fatalf("CloseTrade returned error: %v", err)
	}

	second, err := b.OpenTrade("XAUUSD", DirectionShort, 2755, goldSettings, 100)
	if err != nil {
		t.Fatalf("expected reopen to succeed, got %v", err)
	}
	if second.ID == first.ID {
		t.Errorf("expected distinct trade ids")
	}

	all := b.AllTrades()
	if len(all) != 2 {
		t.Fatalf("expected 2 trades in insertion order, got %d", len(all))
	}
	if all[0].ID != first.ID || all[1].ID != second.ID {
		t.Errorf("trades out of insertion order")
	}
}

func TestRecomputeEquity(t *testing.T) {
	b := New(50000, nil)

	b.RecomputeEquity(250)
	if got := b.Ledger().Equity; got != 50250 {
		t.Errorf("expected equity 50250, got %f", got)
	}

	b.RecomputeEquity(-1000)
	if got := b.Ledger().Equity; got != 49000 {
		t.Errorf("expected equity 49000, got %f", got)
	}

	// 净值刷新不触碰余额。
	if got := b.Ledger().Balance; got != 50000 {
		t.Errorf("expected balance 50000, got %f", got)
	}
}

func TestFloatingPnl(t *testing.T) {
	long := Trade{Direction: DirectionLong, EntryPrice: 2750, ContractSize: 100, LotSize: 1}
	if got := long.FloatingPnl(2752); got != 200 {
		t.Errorf("expected long pnl 200, got %f", got)
	}

	short := Trade{Direction: DirectionShort, EntryPrice: 97000, ContractSize: 1, LotSize: 0.5}
	if got := short.FloatingPnl(96000); got != 500 {
		t.Errorf("expected short pnl 500, got %f", got)
	}
}

func TestStopBreached(t *testing.T) {
	long := Trade{Direction: DirectionLong, StopLossPrice: 2745}
	if long.StopBreached(2746) {
		t.Errorf("long stop should not trigger above stop price")
	}
	if !long.StopBreached(2745) {
		t.Errorf("long stop should trigger at stop price")
	}
	if !long.StopBreached(2740) {
		t.Errorf("long stop should trigger below stop price")
	}

	short := Trade{Direction: DirectionShort, StopLossPrice: 2755}
	if short.StopBreached(2754) {
		t.Errorf("short stop should not trigger below stop price")
	}
	if !short.StopBreached(2755) {
		t.Errorf("short stop should trigger at stop price")
	}
}

func TestDirectionOpposite(t *testing.T) {
	if DirectionLong.Opposite() != DirectionShort {
		t.Errorf("expected LONG opposite to be SHORT")
	}
	if DirectionShort.Opposite() != DirectionLong {
		t.Errorf("expected SHORT opposite to be LONG")
	}
}
