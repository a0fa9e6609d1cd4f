package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

const technicalTemplate = `
你是一个专业的加密货币技术分析师。以下是 {{ .Pair }} 在回看窗口内的技术指标汇总：

{{ .IndicatorsJSON }}

请根据趋势、动量与波动情况判断方向，并严格输出唯一的 JSON 对象：
{
  "signal": "bullish|bearish|neutral",   // 技术面方向
  "confidence": 0.0-1.0,                 // 信心度
  "reasoning": "..."                     // 支撑结论的关键理由
}
所有字段均需填写，不要输出 JSON 以外的内容。
`

const sentimentTemplate = `
你是一个专业的加密货币市场情绪分析师。以下是 {{ .Pair }} 当前的全网持仓结构：

- 多头总持仓量: {{ printf "%.2f" .LongOI }}
- 空头总持仓量: {{ printf "%.2f" .ShortOI }}
- 多空比: {{ printf "%.4f" .Ratio }}

请根据多空持仓的失衡程度判断市场情绪，并严格输出唯一的 JSON 对象：
{
  "signal": "bullish|bearish|neutral",   // 情绪面方向
  "confidence": 0.0-1.0,                 // 信心度
  "reasoning": "..."                     // 支撑结论的关键理由
}
所有字段均需填写，不要输出 JSON 以外的内容。
`

const portfolioTemplate = `
你是一个专业的加密货币投资组合经理，负责给出 {{ .Pair }} 的最终交易指令。

分析师信号：
- 技术面: {{ .TechnicalContent }}
- 情绪面: {{ .SentimentContent }}

风险测算：
{{ .RiskContent }}

当前投资组合：
- 可用现金: {{ printf "%.2f" .Cash }}
- 多头抵押品: {{ printf "%.2f" .CollateralLong }}
- 空头抵押品: {{ printf "%.2f" .CollateralShort }}
- 持仓入场价: {{ printf "%.2f" .PriceCollateral }}

制定决策时请遵循：
1. quantity 为现金名义金额，不得超过风险测算给出的 max_position_size；
2. 买入（long）要求现金充足，卖空（short）同理；
3. 无明确方向或信号冲突时保持观望（hold，quantity=0）。

请严格输出唯一的 JSON 对象：
{
  "action": "long|short|hold",   // 交易动作
  "quantity": 0.0,               // 现金名义金额，hold 时填 0
  "reasoning": "..."             // 支撑结论的关键理由
}
所有字段均需填写，不要输出 JSON 以外的内容。
`

var (
	technicalTmpl = template.Must(template.New("technical").Parse(technicalTemplate))
	sentimentTmpl = template.Must(template.New("sentiment").Parse(sentimentTemplate))
	portfolioTmpl = template.Must(template.New("portfolio").Parse(portfolioTemplate))
)

// TechnicalInput 用于渲染技术分析提示词。
type TechnicalInput struct {
	Pair           string
	IndicatorsJSON string
}

// SentimentInput 用于渲染情绪分析提示词。
type SentimentInput struct {
	Pair    string
	LongOI  float64
	ShortOI float64
	Ratio   float64
}

// PortfolioInput 用于渲染最终决策提示词。
type PortfolioInput struct {
	Pair             string
	TechnicalContent string
	SentimentContent string
	RiskContent      string
	Cash             float64
	CollateralLong   float64
	CollateralShort  float64
	PriceCollateral  float64
}

// BuildTechnicalPrompt 渲染技术分析阶段的提示词。
func BuildTechnicalPrompt(pair string, indicators interface{}) (string, error) {
	payload, err := json.MarshalIndent(indicators, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化指标失败: %w", err)
	}
	return render(technicalTmpl, TechnicalInput{
		Pair:           pair,
		IndicatorsJSON: string(payload),
	})
}

// BuildSentimentPrompt 渲染情绪分析阶段的提示词。
func BuildSentimentPrompt(input SentimentInput) (string, error) {
	return render(sentimentTmpl, input)
}

// BuildPortfolioPrompt 渲染最终决策阶段的提示词。
func BuildPortfolioPrompt(input PortfolioInput) (string, error) {
	return render(portfolioTmpl, input)
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
