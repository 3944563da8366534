package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrSizeTooSmall 表示按风险预算计算出的手数不足以开仓。
// 调用方应跳过本次开仓并记录告警，而不是视为致命错误。
var ErrSizeTooSmall = errors.New("risk: 手数过小，放弃开仓")

// Settings 为单个品种的风控参数，仅通过显式配置操作修改。
type Settings struct {
	// RiskPercentage 为单笔风险占余额的比例（百分数，(0,100]）。
	RiskPercentage float64 `json:"risk_percentage"`
	// StopLossDistance 为止损距离（价格单位，正数）。
	StopLossDistance float64 `json:"stop_loss_distance"`
}

// Validate 校验风控参数合法性。
func (s Settings) Validate() error {
	if s.RiskPercentage <= 0 || s.RiskPercentage > 100 {
		return fmt.Errorf("risk: risk_percentage 必须位于(0,100]，当前为 %f", s.RiskPercentage)
	}
	if s.StopLossDistance <= 0 {
		return fmt.Errorf("risk: stop_loss_distance 必须大于0，当前为 %f", s.StopLossDistance)
	}
	return nil
}

// Sizing 为仓位测算结果。
type Sizing struct {
	// LotSize 为手数，保留两位小数。
	LotSize float64
	// RiskAmount 为本笔交易允许承受的最大亏损金额。
	RiskAmount float64
}

// Size 根据账户余额与风控参数计算仓位。
// 纯函数：相同输入必定产生相同输出，可在任意协程中无锁调用。
func Size(balance float64, settings Settings, contractSize float64) (Sizing, error) {
	riskAmount := balance * settings.RiskPercentage / 100

	var lotSize float64
	if settings.StopLossDistance > 0 && contractSize > 0 {
		lotSize = round2(riskAmount / (settings.StopLossDistance * contractSize))
	}

	sizing := Sizing{
		LotSize:    lotSize,
		RiskAmount: riskAmount,
	}

	if lotSize <= 0 {
		return sizing, ErrSizeTooSmall
	}

	return sizing, nil
}

// StopLossPrice 按方向计算新仓位的初始止损价。
// direction 取值与 book.Direction 一致（LONG/SHORT）。
func StopLossPrice(direction string, entryPrice, stopDistance float64) float64 {
	if direction == "SHORT" {
		return entryPrice + stopDistance
	}
	return entryPrice - stopDistance
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
