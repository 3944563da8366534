package risk

import (
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *SettingsStore {
	t.Helper()
	store, err := NewSettingsStore(map[string]Settings{
		"XAUUSD": {RiskPercentage: 1.0, StopLossDistance: 5.0},
		"BTCUSD": {RiskPercentage: 1.0, StopLossDistance: 500},
	})
	if err != nil {
		t.Fatalf("NewSettingsStore returned error: %v", err)
	}
	return store
}

func TestSettingsStore_GetNormalizesSymbol(t *testing.T) {
	store := newTestStore(t)

	got, ok := store.Get(" xauusd ")
	if !ok {
		t.Fatalf("expected settings for lowercase symbol")
	}
	if got.StopLossDistance != 5.0 {
		t.Errorf("expected stop distance 5.0, got %f", got.StopLossDistance)
	}

	if _, ok := store.Get("ETHUSD"); ok {
		t.Errorf("expected no settings for unregistered symbol")
	}
}

func TestSettingsStore_Update(t *testing.T) {
	store := newTestStore(t)

	updated := Settings{RiskPercentage: 2.0, StopLossDistance: 10.0}
	if err := store.Update("XAUUSD", updated); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	got, ok := store.Get("XAUUSD")
	if !ok || got != updated {
		t.Errorf("expected updated settings %+v, got %+v (ok=%v)", updated, got, ok)
	}
}

func TestSettingsStore_UpdateRejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	if err := store.Update("XAUUSD", Settings{RiskPercentage: 0, StopLossDistance: 5}); err == nil {
		t.Errorf("expected error for zero risk percentage")
	}
	if err := store.Update("XAUUSD", Settings{RiskPercentage: 1, StopLossDistance: -1}); err == nil {
		t.Errorf("expected error for negative stop distance")
	}

	// 非法更新不应覆盖原值。
	got, _ := store.Get("XAUUSD")
	if got.RiskPercentage != 1.0 {
		t.Errorf("settings mutated by rejected update: %+v", got)
	}
}

func TestSettingsStore_UpdateUnknownSymbol(t *testing.T) {
	store := newTestStore(t)

	err := store.Update("DOGEUSD", Settings{RiskPercentage: 1, StopLossDistance: 5})
	if err == nil || !strings.Contains(err.Error(), "未知品种") {
		t.Fatalf("expected unknown symbol error, got %v", err)
	}
}

func TestSettingsStore_ConcurrentAccess(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Update("BTCUSD", Settings{RiskPercentage: 1.5, StopLossDistance: 400})
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Get("BTCUSD")
		}()
	}
	wg.Wait()

	got, ok := store.Get("BTCUSD")
	if !ok {
		t.Fatalf("expected settings to survive concurrent access")
	}
	if got.StopLossDistance != 400 {
		t.Errorf("expected stop distance 400 after updates, got %f", got.StopLossDistance)
	}
}
