package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"sentitrade/internal/asset"
	"sentitrade/internal/config"
)

// 计算近期涨跌幅时回看的采样点数量。
const recentChangeWindow = 20

// OpenAIProvider 封装 OpenAI 调用逻辑，把大模型输出转换为结构化分析结果。
type OpenAIProvider struct {
	cfg      config.OpenAIConfig
	registry *asset.Registry
	data     MarketData
	logger   *zap.Logger
	sdk      *openai.Client
}

// NewOpenAIProvider 使用给定配置创建 AI 信号来源。
func NewOpenAIProvider(cfg config.OpenAIConfig, registry *asset.Registry, data MarketData, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if registry == nil {
		return nil, errors.New("signal: registry 不能为空")
	}
	if data == nil {
		return nil, errors.New("signal: 行情数据源不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &OpenAIProvider{
		cfg:      cfg,
		registry: registry,
		data:     data,
		logger:   logger,
		sdk:      openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Analyze 请求大模型对指定品种给出交易方向与情绪评估。
func (p *OpenAIProvider) Analyze(ctx context.Context, symbol string) (Analysis, error) {
	if p.cfg.Model == "" {
		return Analysis{}, errors.New("openai model 不能为空")
	}

	a, ok := p.registry.Get(symbol)
	if !ok {
		return Analysis{}, fmt.Errorf("signal: 未知品种 %s", symbol)
	}

	history := p.data.History(symbol)
	prompt, err := BuildPrompt(PromptContext{
		Symbol:          a.Symbol,
		DisplayName:     a.DisplayName,
		CurrentPrice:    p.data.CurrentPrice(symbol),
		RecentChangePct: recentChangePct(history),
		WindowSize:      recentChangeWindow,
	})
	if err != nil {
		return Analysis{}, err
	}

	response, err := p.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		p.logger.Error("调用OpenAI失败", zap.String("symbol", symbol), zap.Error(err))
		return Analysis{}, fmt.Errorf("调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return Analysis{}, errors.New("OpenAI 返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return Analysis{}, errors.New("OpenAI 返回内容为空")
	}

	analysis, err := parseAnalysis(rawContent)
	if err != nil {
		p.logger.Error("解析模型分析失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return Analysis{}, err
	}

	analysis.Symbol = a.Symbol
	analysis.GeneratedAt = time.Now().UTC()
	if analysis.SentimentCategory == "" {
		analysis.SentimentCategory = CategoryForScore(analysis.SentimentScore)
	}

	if err := analysis.Validate(); err != nil {
		return Analysis{}, err
	}

	p.logger.Info("AI 分析生成成功",
		zap.String("symbol", analysis.Symbol),
		zap.String("decision", string(analysis.Decision)),
		zap.Float64("sentiment_score", analysis.SentimentScore),
	)

	return analysis, nil
}

func parseAnalysis(content string) (Analysis, error) {
	jsonPayload, err := extractJSON(content)
	if err != nil {
		return Analysis{}, err
	}

	var analysis Analysis
	if err = json.Unmarshal(jsonPayload, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("解析分析JSON失败: %w", err)
	}

	analysis.Decision = Decision(strings.ToUpper(strings.TrimSpace(string(analysis.Decision))))
	analysis.SentimentCategory = strings.ToUpper(strings.TrimSpace(analysis.SentimentCategory))

	return analysis, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}

func recentChangePct(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}

	window := len(history)
	if window > recentChangeWindow {
		window = recentChangeWindow
	}

	first := history[len(history)-window]
	last := history[len(history)-1]
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}
