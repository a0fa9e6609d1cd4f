package risk

import (
	"fmt"
	"math"
)

// DefaultMaxLossFraction 为单窗口允许亏损占现金的默认比例。
const DefaultMaxLossFraction = 0.05

// Assessment 为一次风险测算的结果。
type Assessment struct {
	MaxPositionSize float64 `json:"max_position_size"`
	Volatility      float64 `json:"volatility"`
	StopLoss        float64 `json:"stop_loss"`
	Reasoning       string  `json:"reasoning"`
}

// Sizer 把价格窗口与可用现金折算为仓位上限。
// 对相同输入始终给出相同输出，内部不保留任何状态。
type Sizer struct {
	maxLossFraction float64
}

// NewSizer 创建仓位测算器，fraction 非法时回退默认值。
func NewSizer(fraction float64) *Sizer {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultMaxLossFraction
	}
	return &Sizer{maxLossFraction: fraction}
}

// Size 根据收盘价窗口与现金计算波动率、仓位上限与止损比例。
// 波动率为0时说明窗口内价格无变化，不构成风险约束，上限直接取现金。
func (s *Sizer) Size(closes []float64, cash float64) Assessment {
	returns := simpleReturns(closes)
	volatility := sampleStd(returns)

	maxLossCash := cash * s.maxLossFraction

	maxPositionSize := cash
	if volatility > 0 {
		maxPositionSize = maxLossCash / volatility
		if maxPositionSize > cash {
			maxPositionSize = cash
		}
	}

	return Assessment{
		MaxPositionSize: maxPositionSize,
		Volatility:      volatility,
		StopLoss:        volatility,
		Reasoning: fmt.Sprintf("波动率=%.2f%% 单窗口最大亏损比例=%.2f%% 最大亏损金额=%.2f",
			volatility*100, s.maxLossFraction*100, maxLossCash),
	}
}

// simpleReturns 计算相邻收盘价的简单收益率，首个未定义的收益被丢弃。
func simpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns
}

// sampleStd 计算样本标准差，样本不足两个时返回0。
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
