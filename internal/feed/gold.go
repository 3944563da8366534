package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const goldPriceBaseURL = "https://data-asg.goldprice.org"

// GoldSource 通过公开的现货金价接口获取 XAU/USD 报价。
type GoldSource struct {
	client *resty.Client
	logger *zap.Logger
}

// NewGoldSource 创建金价报价来源。
func NewGoldSource(timeout time.Duration, logger *zap.Logger) *GoldSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(goldPriceBaseURL)
	client.SetTimeout(timeout)

	return &GoldSource{
		client: client,
		logger: logger,
	}
}

type goldRatesResponse struct {
	Items []struct {
		XAUPrice float64 `json:"xauPrice"`
	} `json:"items"`
}

// Quote 返回最新金价。
func (s *GoldSource) Quote(ctx context.Context) (float64, error) {
	resp, err := s.client.R().SetContext(ctx).Get("/dbXRates/USD")
	if err != nil {
		return 0, fmt.Errorf("feed: 获取金价失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("feed: 金价接口返回 %d: %s", resp.StatusCode(), resp.String())
	}

	var payload goldRatesResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, fmt.Errorf("feed: 解析金价响应失败: %w", err)
	}
	if len(payload.Items) == 0 || payload.Items[0].XAUPrice <= 0 {
		return 0, fmt.Errorf("feed: 金价响应缺少有效价格")
	}

	return payload.Items[0].XAUPrice, nil
}
