package signal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Decision 表示信号给出的交易指令。
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// NewsSource 为支撑分析结论的资讯来源。
type NewsSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Analysis 为一次信号分析的完整结果。
type Analysis struct {
	Symbol   string   `json:"symbol"`
	Decision Decision `json:"decision"`
	// SentimentScore 为归一化情绪分，位于 [-1,1]，正值看多。
	SentimentScore    float64      `json:"sentiment_score"`
	SentimentCategory string       `json:"sentiment_category"`
	Reasoning         string       `json:"reasoning"`
	Sources           []NewsSource `json:"sources,omitempty"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

var validDecisions = map[Decision]struct{}{
	DecisionBuy:  {},
	DecisionSell: {},
	DecisionHold: {},
}

var validCategories = map[string]struct{}{
	"POSITIVE": {},
	"NEGATIVE": {},
	"NEUTRAL":  {},
}

// Validate 校验分析结果字段合法性。
func (a Analysis) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("symbol 不能为空")
	}

	decision := Decision(strings.ToUpper(strings.TrimSpace(string(a.Decision))))
	if _, ok := validDecisions[decision]; !ok {
		return fmt.Errorf("decision 字段取值非法: %s", a.Decision)
	}

	if a.SentimentScore < -1 || a.SentimentScore > 1 {
		return fmt.Errorf("sentiment_score 必须位于 [-1,1]，当前为 %f", a.SentimentScore)
	}

	category := strings.ToUpper(strings.TrimSpace(a.SentimentCategory))
	if category != "" {
		if _, ok := validCategories[category]; !ok {
			return fmt.Errorf("sentiment_category 字段取值非法: %s", a.SentimentCategory)
		}
	}

	if strings.TrimSpace(a.Reasoning) == "" {
		return errors.New("reasoning 不能为空")
	}

	return nil
}

// CategoryForScore 根据情绪分推导情绪类别。
func CategoryForScore(score float64) string {
	switch {
	case score > 0.1:
		return "POSITIVE"
	case score < -0.1:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

// Provider 为信号来源抽象，实现可能依赖外部服务，调用有延迟且可能失败。
type Provider interface {
	Analyze(ctx context.Context, symbol string) (Analysis, error)
}

// MarketData 为信号实现提供行情上下文。
type MarketData interface {
	CurrentPrice(symbol string) float64
	History(symbol string) []float64
}
