package book

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sentitrade/internal/risk"
)

var (
	// ErrAlreadyOpen 表示该品种已存在未平仓交易，属于调用方的契约违规。
	ErrAlreadyOpen = errors.New("book: 品种已存在未平仓交易")
	// ErrAlreadyClosed 表示交易已被平仓。反手信号与止损在同一瞬间竞争平仓时属预期结果。
	ErrAlreadyClosed = errors.New("book: 交易已平仓")
	// ErrNotFound 表示交易不存在。
	ErrNotFound = errors.New("book: 交易不存在")
)

// Ledger 为账户台账快照。
// Equity 永远由 balance + 浮动盈亏推导，不单独累计。
type Ledger struct {
	Balance         float64   `json:"balance"`
	Equity          float64   `json:"equity"`
	LastDecisionRun time.Time `json:"last_decision_run,omitempty"`
}

// Book 为交易与账户状态的唯一权威存储。
// 所有变更都经过内部互斥锁串行化；决策循环与行情循环并发读写时，
// 同一笔交易的平仓只会成功一次。
type Book struct {
	mu sync.Mutex

	trades []*Trade
	byID   map[string]*Trade
	// openBySymbol 维护"每品种至多一笔 OPEN 交易"不变式。
	openBySymbol map[string]*Trade

	ledger Ledger
	logger *zap.Logger
}

// New 以初始余额创建账本。
func New(initialBalance float64, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		byID:         make(map[string]*Trade),
		openBySymbol: make(map[string]*Trade),
		ledger: Ledger{
			Balance: initialBalance,
			Equity:  initialBalance,
		},
		logger: logger,
	}
}

// OpenTrade 按风控参数测算仓位并登记新交易。
// 该品种已有未平仓交易时返回 ErrAlreadyOpen；
// 手数不足时返回 risk.ErrSizeTooSmall，两者均不改变任何状态。
func (b *Book) OpenTrade(symbol string, direction Direction, entryPrice float64, settings risk.Settings, contractSize float64) (Trade, error) {
	if entryPrice <= 0 {
		return Trade{}, fmt.Errorf("book: 开仓价格无效: %f", entryPrice)
	}
	if direction != DirectionLong && direction != DirectionShort {
		return Trade{}, fmt.Errorf("book: 开仓方向非法: %s", direction)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.openBySymbol[symbol]; exists {
		return Trade{}, fmt.Errorf("%w: %s", ErrAlreadyOpen, symbol)
	}

	sizing, err := risk.Size(b.ledger.Balance, settings, contractSize)
	if err != nil {
		return Trade{}, err
	}

	trade := &Trade{
		ID:                   newTradeID(),
		Symbol:               symbol,
		Direction:            direction,
		EntryPrice:           entryPrice,
		LotSize:              sizing.LotSize,
		StopLossPrice:        risk.StopLossPrice(string(direction), entryPrice, settings.StopLossDistance),
		RiskPercentageAtOpen: settings.RiskPercentage,
		ContractSize:         contractSize,
		OpenedAt:             time.Now().UTC(),
		Status:               StatusOpen,
	}

	b.trades = append(b.trades, trade)
	b.byID[trade.ID] = trade
	b.openBySymbol[symbol] = trade

	b.logger.Info("开仓",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", symbol),
		zap.String("direction", string(direction)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("lot_size", trade.LotSize),
		zap.Float64("stop_loss", trade.StopLossPrice),
	)

	return *trade, nil
}

// CloseTrade 以给定价格平仓并把已实现盈亏一次性计入余额。
// 对已平仓交易重复调用返回 ErrAlreadyClosed 且不产生任何副作用，
// 因此反手信号与止损竞争平仓时恰好一方成功。
func (b *Book) CloseTrade(id string, closePrice float64, ts time.Time) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trade, ok := b.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if trade.Status == StatusClosed {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyClosed, id)
	}

	pnl := trade.FloatingPnl(closePrice)

	trade.Status = StatusClosed
	trade.ClosePrice = closePrice
	trade.ClosedAt = ts
	trade.RealizedPnl = pnl

	delete(b.openBySymbol, trade.Symbol)
	b.ledger.Balance += pnl

	b.logger.Info("平仓",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.Float64("close_price", closePrice),
		zap.Float64("realized_pnl", pnl),
		zap.Float64("balance", b.ledger.Balance),
	)

	return pnl, nil
}

// OpenTradeFor 返回指定品种当前未平仓交易的快照。
func (b *Book) OpenTradeFor(symbol string) (Trade, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trade, ok := b.openBySymbol[symbol]
	if !ok {
		return Trade{}, false
	}
	return *trade, true
}

// OpenTrades 返回全部未平仓交易的快照，按开仓顺序排列。
func (b *Book) OpenTrades() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := make([]Trade, 0, len(b.openBySymbol))
	for _, trade := range b.trades {
		if trade.Status == StatusOpen {
			open = append(open, *trade)
		}
	}
	return open
}

// AllTrades 返回全部交易的只读快照，按登记顺序排列。
func (b *Book) AllTrades() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := make([]Trade, 0, len(b.trades))
	for _, trade := range b.trades {
		all = append(all, *trade)
	}
	return all
}

// RecomputeEquity 用最新的浮动盈亏总额刷新净值，不触碰余额。
func (b *Book) RecomputeEquity(floatingSum float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger.Equity = b.ledger.Balance + floatingSum
}

// Ledger 返回账户台账快照。
func (b *Book) Ledger() Ledger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger
}

// StampDecisionRun 记录最近一次决策循环完成的时间。
func (b *Book) StampDecisionRun(ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger.LastDecisionRun = ts
}
