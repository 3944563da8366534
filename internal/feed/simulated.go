package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatedSource 围绕基准价产生有界波动的模拟报价，
// 用于无网络环境的运行与测试，永不失败。
type SimulatedSource struct {
	base float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSource 以基准价创建模拟来源。
func NewSimulatedSource(basePrice float64) *SimulatedSource {
	return &SimulatedSource{
		base: basePrice,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Quote 返回基准价附近的模拟价格。
func (s *SimulatedSource) Quote(_ context.Context) (float64, error) {
	s.mu.Lock()
	noise := (s.rng.Float64() - 0.5) * 2 * s.base * fallbackNoiseRatio
	s.mu.Unlock()

	wave := math.Sin(float64(time.Now().UnixMilli())/10000) * s.base * fallbackWaveRatio
	return s.base + wave + noise, nil
}
