package asset

import (
	"fmt"
	"sort"
	"strings"

	"sentitrade/internal/config"
)

// Asset 描述单个可交易品种的静态参数，加载后不可变。
type Asset struct {
	Symbol       string
	DisplayName  string
	ContractSize float64
	// DefaultStopDistance 为该品种默认的止损距离（价格单位）。
	DefaultStopDistance float64
	InitialPrice        float64
}

// Registry 为品种静态配置表，启动时加载并校验，之后只读。
type Registry struct {
	assets  map[string]Asset
	symbols []string
}

// NewRegistry 根据配置构建品种注册表。
func NewRegistry(cfgAssets []config.AssetConfig) (*Registry, error) {
	if len(cfgAssets) == 0 {
		return nil, fmt.Errorf("asset: 品种列表不能为空")
	}

	assets := make(map[string]Asset, len(cfgAssets))
	symbols := make([]string, 0, len(cfgAssets))

	for _, a := range cfgAssets {
		symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("asset: symbol 不能为空")
		}
		if _, dup := assets[symbol]; dup {
			return nil, fmt.Errorf("asset: 品种 %s 重复定义", symbol)
		}
		if a.ContractSize <= 0 {
			return nil, fmt.Errorf("asset: %s 的 contract_size 必须大于0", symbol)
		}
		if a.DefaultStopDistance <= 0 {
			return nil, fmt.Errorf("asset: %s 的 default_stop_distance 必须大于0", symbol)
		}
		if a.InitialPrice <= 0 {
			return nil, fmt.Errorf("asset: %s 的 initial_price 必须大于0", symbol)
		}

		display := strings.TrimSpace(a.DisplayName)
		if display == "" {
			display = symbol
		}

		assets[symbol] = Asset{
			Symbol:              symbol,
			DisplayName:         display,
			ContractSize:        a.ContractSize,
			DefaultStopDistance: a.DefaultStopDistance,
			InitialPrice:        a.InitialPrice,
		}
		symbols = append(symbols, symbol)
	}

	// 固定遍历顺序，保证决策循环按品种确定性推进。
	sort.Strings(symbols)

	return &Registry{
		assets:  assets,
		symbols: symbols,
	}, nil
}

// Get 返回指定品种的静态配置。
func (r *Registry) Get(symbol string) (Asset, bool) {
	a, ok := r.assets[strings.ToUpper(strings.TrimSpace(symbol))]
	return a, ok
}

// Has 判断品种是否受支持。
func (r *Registry) Has(symbol string) bool {
	_, ok := r.Get(symbol)
	return ok
}

// Symbols 返回按字典序排列的品种列表快照。
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// Len 返回品种数量。
func (r *Registry) Len() int {
	return len(r.symbols)
}
