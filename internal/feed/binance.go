package feed

import (
	"context"
	"fmt"
	"sync"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// BinanceSource 通过 Binance 公共行情接口获取最新成交价。
type BinanceSource struct {
	exchange *ccxt.Binance
	market   string
	logger   *zap.Logger

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewBinanceSource 创建 Binance 报价来源，market 为 ccxt 统一符号（如 BTC/USDT）。
func NewBinanceSource(market string, logger *zap.Logger) *BinanceSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	exchange := ccxt.NewBinance(map[string]interface{}{
		"enableRateLimit": true,
	})

	return &BinanceSource{
		exchange: exchange,
		market:   market,
		logger:   logger,
	}
}

// Quote 返回最新成交价。ccxt 的调用不接受 ctx，这里在协程中执行并用 ctx 限定等待时间。
func (s *BinanceSource) Quote(ctx context.Context) (float64, error) {
	type result struct {
		price float64
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		price, err := s.fetch()
		ch <- result{price: price, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		return r.price, r.err
	}
}

func (s *BinanceSource) fetch() (float64, error) {
	if err := s.ensureMarketsLoaded(); err != nil {
		return 0, err
	}

	ticker, err := s.exchange.FetchTicker(s.market)
	if err != nil {
		return 0, fmt.Errorf("feed: 获取 %s 行情失败: %w", s.market, err)
	}

	price := derefFloat(ticker.Last)
	if price <= 0 {
		price = derefFloat(ticker.Close)
	}
	if price <= 0 {
		bid := derefFloat(ticker.Bid)
		ask := derefFloat(ticker.Ask)
		if bid > 0 && ask > 0 {
			price = (bid + ask) / 2
		}
	}
	if price <= 0 {
		return 0, fmt.Errorf("feed: %s 行情缺少有效价格", s.market)
	}

	return price, nil
}

func (s *BinanceSource) ensureMarketsLoaded() error {
	if s.marketsLoaded {
		return nil
	}

	s.marketsMu.Lock()
	defer s.marketsMu.Unlock()

	if s.marketsLoaded {
		return nil
	}

	if _, err := s.exchange.LoadMarkets(); err != nil {
		return fmt.Errorf("feed: 加载市场元数据失败: %w", err)
	}

	s.marketsLoaded = true
	s.logger.Info("已完成市场元数据加载", zap.String("market", s.market))
	return nil
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
