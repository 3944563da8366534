package asset

import (
	"testing"

	"sentitrade/internal/config"
)

func validAssets() []config.AssetConfig {
	return []config.AssetConfig{
		{Symbol: "XAUUSD", DisplayName: "Gold vs US Dollar", ContractSize: 100, DefaultStopDistance: 5, InitialPrice: 2750},
		{Symbol: "btcusd", ContractSize: 1, DefaultStopDistance: 500, InitialPrice: 97000},
	}
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(validAssets())
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	if registry.Len() != 2 {
		t.Errorf("expected 2 assets, got %d", registry.Len())
	}

	gold, ok := registry.Get("XAUUSD")
	if !ok {
		t.Fatalf("expected XAUUSD to be registered")
	}
	if gold.DisplayName != "Gold vs US Dollar" {
		t.Errorf("unexpected display name: %s", gold.DisplayName)
	}

	// 符号统一为大写，显示名缺省回退到符号。
	btc, ok := registry.Get("BTCUSD")
	if !ok {
		t.Fatalf("expected lowercase symbol to be normalized")
	}
	if btc.DisplayName != "BTCUSD" {
		t.Errorf("expected display name fallback to symbol, got %s", btc.DisplayName)
	}
}

func TestNewRegistry_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		assets []config.AssetConfig
	}{
		{"empty list", nil},
		{"blank symbol", []config.AssetConfig{{Symbol: " ", ContractSize: 1, DefaultStopDistance: 1, InitialPrice: 1}}},
		{"duplicate symbol", []config.AssetConfig{
			{Symbol: "XAUUSD", ContractSize: 100, DefaultStopDistance: 5, InitialPrice: 2750},
			{Symbol: "xauusd", ContractSize: 100, DefaultStopDistance: 5, InitialPrice: 2750},
		}},
		{"zero contract size", []config.AssetConfig{{Symbol: "XAUUSD", ContractSize: 0, DefaultStopDistance: 5, InitialPrice: 2750}}},
		{"zero stop distance", []config.AssetConfig{{Symbol: "XAUUSD", ContractSize: 100, DefaultStopDistance: 0, InitialPrice: 2750}}},
		{"zero initial price", []config.AssetConfig{{Symbol: "XAUUSD", ContractSize: 100, DefaultStopDistance: 5, InitialPrice: 0}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.assets); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestRegistry_SymbolsSortedAndCopied(t *testing.T) {
	registry, err := NewRegistry(validAssets())
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	symbols := registry.Symbols()
	if len(symbols) != 2 || symbols[0] != "BTCUSD" || symbols[1] != "XAUUSD" {
		t.Fatalf("expected sorted symbols [BTCUSD XAUUSD], got %v", symbols)
	}

	symbols[0] = "MUTATED"
	if registry.Symbols()[0] != "BTCUSD" {
		t.Errorf("Symbols snapshot leaked internal state")
	}
}

func TestRegistry_Has(t *testing.T) {
	registry, err := NewRegistry(validAssets())
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	if !registry.Has(" xauusd ") {
		t.Errorf("expected Has to normalize symbol")
	}
	if registry.Has("ETHUSD") {
		t.Errorf("expected false for unregistered symbol")
	}
}
