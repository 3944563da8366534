package risk

import (
	"fmt"
	"strings"
	"sync"
)

// SettingsStore 维护各品种的风控参数。
// 读取发生在每次仓位测算时，写入仅来自用户配置操作；
// 更新只影响后续开仓，不会回溯调整已有持仓。
type SettingsStore struct {
	mu       sync.RWMutex
	settings map[string]Settings
}

// NewSettingsStore 以给定默认值初始化风控参数表。
func NewSettingsStore(defaults map[string]Settings) (*SettingsStore, error) {
	settings := make(map[string]Settings, len(defaults))
	for symbol, s := range defaults {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("risk: 品种 %s 默认参数非法: %w", symbol, err)
		}
		settings[normalizeSymbol(symbol)] = s
	}
	return &SettingsStore{settings: settings}, nil
}

// Get 返回指定品种的当前风控参数。
func (s *SettingsStore) Get(symbol string) (Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[normalizeSymbol(symbol)]
	return settings, ok
}

// Update 替换指定品种的风控参数，下一次仓位测算生效。
func (s *SettingsStore) Update(symbol string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	key := normalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settings[key]; !ok {
		return fmt.Errorf("risk: 未知品种 %s", symbol)
	}
	s.settings[key] = settings
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
