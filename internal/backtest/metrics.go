package backtest

import (
	"math"
	"time"
)

// EquityPoint 记录某个交易日收盘后的组合市值。
type EquityPoint struct {
	Date           time.Time
	PortfolioValue float64
}

// Metrics 记录回测绩效指标。MaxDrawdown 为非正数，
// SharpeRatio 在日收益无波动时为 NaN。
type Metrics struct {
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
}

// 年化因子假设每年252个交易日。
const annualTradingDays = 252

func calculateMetrics(points []EquityPoint, initialCapital float64) Metrics {
	if len(points) == 0 || initialCapital <= 0 {
		return Metrics{SharpeRatio: math.NaN()}
	}

	final := points[len(points)-1].PortfolioValue
	totalReturn := (final - initialCapital) / initialCapital

	return Metrics{
		TotalReturn: totalReturn,
		SharpeRatio: computeSharpe(dailyReturns(points)),
		MaxDrawdown: computeDrawdown(points),
	}
}

func dailyReturns(points []EquityPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prevValue := points[i-1].PortfolioValue
		if prevValue == 0 {
			continue
		}
		returns = append(returns, points[i].PortfolioValue/prevValue-1)
	}
	return returns
}

func computeSharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	if len(returns) > 1 {
		variance /= float64(len(returns) - 1)
	}

	std := math.Sqrt(variance)
	if std == 0 {
		return math.NaN()
	}

	return mean / std * math.Sqrt(annualTradingDays)
}

func computeDrawdown(points []EquityPoint) float64 {
	var peak float64
	maxDD := 0.0
	for _, p := range points {
		if p.PortfolioValue > peak {
			peak = p.PortfolioValue
		}
		if peak <= 0 {
			continue
		}
		dd := p.PortfolioValue/peak - 1
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
