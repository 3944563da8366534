package signal

import (
	"bytes"
	"fmt"
	"text/template"
)

const analysisTemplate = `
你是一个专业的金融市场分析师。你的任务是综合近期市场动态与新闻情绪，对指定品种给出交易方向建议。

分析目标：
- 品种: {{ .Symbol }}（{{ .DisplayName }}）
- 当前价格: {{ printf "%.2f" .CurrentPrice }}
- 近期价格变化: {{ printf "%+.2f%%" .RecentChangePct }}（最近 {{ .WindowSize }} 个采样点）

制定结论时请遵循：
1. 结合价格走势与市场情绪判断方向，不要只看单一因素；
2. 情绪分必须反映结论的强度：弱信号请靠近 0，强信号才接近 ±1；
3. 无明确方向时果断给出 HOLD，不要勉强给出方向；
4. reasoning 用一两句话给出支撑结论的关键理由。

请严格输出唯一的 JSON 对象，格式如下：
{
  "decision": "BUY|SELL|HOLD",                          // 交易方向建议
  "sentiment_score": -1.0-1.0,                           // 归一化情绪分，正值看多
  "sentiment_category": "POSITIVE|NEGATIVE|NEUTRAL",    // 情绪类别
  "reasoning": "...",                                   // 支撑结论的关键理由
  "sources": [{"title": "...", "url": "..."}]           // （可选）参考的资讯来源
}

注意事项：
- sentiment_score 的符号必须与 decision 一致：BUY 为正，SELL 为负，HOLD 靠近 0。
- 所有字段均需填写；sources 没有可引用内容时返回空数组。
`

var analysisTmpl = template.Must(template.New("analysis").Parse(analysisTemplate))

// PromptContext 用于渲染提示词。
type PromptContext struct {
	Symbol          string
	DisplayName     string
	CurrentPrice    float64
	RecentChangePct float64
	WindowSize      int
}

// BuildPrompt 将品种与行情上下文渲染成提示词字符串。
func BuildPrompt(ctx PromptContext) (string, error) {
	var buf bytes.Buffer
	if err := analysisTmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
