package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sentitrade/internal/asset"
	"sentitrade/internal/config"
)

// Source 为单一品种的外部报价来源。
// 实现必须尊重 ctx 超时，失败由 Feed 统一退化处理，来源内部不做周期内重试。
type Source interface {
	Quote(ctx context.Context) (float64, error)
}

const (
	// 退化报价的慢周期波动与噪声幅度，按最近价格等比缩放，
	// 使金价与币价两种量级下的波动都保持合理。
	fallbackWaveRatio  = 0.002
	fallbackNoiseRatio = 0.0004
)

type entry struct {
	source  Source
	price   float64
	history []float64
}

// Feed 维护各品种的最新报价缓存。
// 刷新在品种之间并发进行，单个品种失败只影响自身，
// 失败时退化为最近价格叠加有界扰动，引擎永远能读到合理价格。
type Feed struct {
	mu      sync.RWMutex
	entries map[string]*entry
	symbols []string

	timeout      time.Duration
	historyLimit int
	logger       *zap.Logger
}

// New 创建行情缓存，初始价格取自品种注册表。
func New(registry *asset.Registry, sources map[string]Source, cfg config.FeedConfig, logger *zap.Logger) (*Feed, error) {
	if registry == nil {
		return nil, fmt.Errorf("feed: registry 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 500
	}

	entries := make(map[string]*entry, registry.Len())
	for _, symbol := range registry.Symbols() {
		a, _ := registry.Get(symbol)
		source, ok := sources[symbol]
		if !ok || source == nil {
			return nil, fmt.Errorf("feed: 品种 %s 缺少报价来源", symbol)
		}
		entries[symbol] = &entry{
			source:  source,
			price:   a.InitialPrice,
			history: []float64{a.InitialPrice},
		}
	}

	return &Feed{
		entries:      entries,
		symbols:      registry.Symbols(),
		timeout:      timeout,
		historyLimit: historyLimit,
		logger:       logger,
	}, nil
}

// CurrentPrice 返回品种的最新报价；未知品种返回 0。
func (f *Feed) CurrentPrice(symbol string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, ok := f.entries[symbol]
	if !ok {
		return 0
	}
	return e.price
}

// History 返回品种的历史报价快照（含退化价格），按时间先后排列。
func (f *Feed) History(symbol string) []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, ok := f.entries[symbol]
	if !ok {
		return nil
	}
	return append([]float64(nil), e.history...)
}

// Snapshot 返回全部品种的最新报价。
func (f *Feed) Snapshot() map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	prices := make(map[string]float64, len(f.entries))
	for symbol, e := range f.entries {
		prices[symbol] = e.price
	}
	return prices
}

// RefreshAll 并发刷新全部品种的报价。
// 全部抓取结束（成功或退化）后才统一写入缓存；本方法自身永不失败。
func (f *Feed) RefreshAll(ctx context.Context) {
	prices := make([]float64, len(f.symbols))
	errs := make([]error, len(f.symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, symbol := range f.symbols {
		group.Go(func() error {
			prices[i], errs[i] = f.fetchOne(groupCtx, symbol)
			// 单品种失败不拖累其他品种，统一在写入阶段退化处理。
			return nil
		})
	}
	_ = group.Wait()

	now := time.Now().UTC()

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, symbol := range f.symbols {
		e := f.entries[symbol]

		price := prices[i]
		if errs[i] != nil || price <= 0 {
			price = fallbackPrice(e.price, now)
			if errs[i] != nil {
				f.logger.Warn("报价获取失败，使用退化价格",
					zap.String("symbol", symbol),
					zap.Float64("fallback", price),
					zap.Error(errs[i]),
				)
			}
		}

		e.price = price
		e.history = append(e.history, price)
		if len(e.history) > f.historyLimit {
			e.history = e.history[len(e.history)-f.historyLimit:]
		}
	}
}

func (f *Feed) fetchOne(ctx context.Context, symbol string) (float64, error) {
	// entries 的键集合在构造后不再变化，读取来源无需加锁。
	e := f.entries[symbol]

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return e.source.Quote(ctx)
}

// fallbackPrice 在最近一次已知价格附近叠加慢周期波动与有界噪声，
// 保证来源故障时引擎拿到的仍是合理价格而不是停摆。
func fallbackPrice(last float64, now time.Time) float64 {
	wave := math.Sin(float64(now.UnixMilli())/10000) * last * fallbackWaveRatio
	noise := (rand.Float64() - 0.5) * 2 * last * fallbackNoiseRatio
	return last + wave + noise
}
