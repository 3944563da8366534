package book

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Direction 表示持仓方向。
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite 返回相反方向。
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Status 表示交易状态。OPEN -> CLOSED 的转换不可逆。
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Trade 为一笔模拟交易的完整记录。
// 处于 OPEN 状态时所有平仓字段为零值；CLOSED 后平仓字段全部写入且不再变更。
type Trade struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`

	EntryPrice    float64 `json:"entry_price"`
	LotSize       float64 `json:"lot_size"`
	StopLossPrice float64 `json:"stop_loss_price"`
	// RiskPercentageAtOpen 为开仓时生效的风险比例快照。
	RiskPercentageAtOpen float64 `json:"risk_percentage_at_open"`
	// ContractSize 为开仓时生效的合约规模快照，平仓损益以此计算。
	ContractSize float64 `json:"contract_size"`

	OpenedAt time.Time `json:"opened_at"`
	Status   Status    `json:"status"`

	ClosePrice  float64   `json:"close_price,omitempty"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
	RealizedPnl float64   `json:"realized_pnl,omitempty"`
}

// FloatingPnl 计算该笔交易在给定价格下的浮动盈亏。
// 平仓损益使用完全相同的公式。
func (t Trade) FloatingPnl(price float64) float64 {
	diff := price - t.EntryPrice
	if t.Direction == DirectionShort {
		diff = t.EntryPrice - price
	}
	return diff * t.ContractSize * t.LotSize
}

// StopBreached 判断给定价格是否触发止损。
func (t Trade) StopBreached(price float64) bool {
	if t.Direction == DirectionShort {
		return price >= t.StopLossPrice
	}
	return price <= t.StopLossPrice
}

var (
	idMu   sync.Mutex
	idMono io.Reader
)

func init() {
	// 用 crypto/rand 播种，ulid.Monotonic 保证同一毫秒内生成的 ID 仍按字典序递增。
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	idMono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

func newTradeID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), idMono)
	if err != nil {
		// 仅在时钟回拨或熵耗尽时发生。
		panic(err)
	}
	return id.String()
}
