package backtest

import (
	"math"
	"testing"
	"time"
)

func makePoints(values ...float64) []EquityPoint {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]EquityPoint, len(values))
	for i, v := range values {
		points[i] = EquityPoint{Date: day.AddDate(0, 0, i), PortfolioValue: v}
	}
	return points
}

func TestCalculateMetricsFlatEquity(t *testing.T) {
	m := calculateMetrics(makePoints(100000, 100000, 100000, 100000), 100000)

	if m.TotalReturn != 0 {
		t.Errorf("expected zero total return, got %f", m.TotalReturn)
	}
	if !math.IsNaN(m.SharpeRatio) {
		t.Errorf("expected NaN sharpe for flat equity, got %f", m.SharpeRatio)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("expected zero drawdown, got %f", m.MaxDrawdown)
	}
}

func TestCalculateMetricsDrawdown(t *testing.T) {
	m := calculateMetrics(makePoints(100, 120, 90, 130), 100)

	if diff := math.Abs(m.MaxDrawdown - (-0.25)); diff > 1e-9 {
		t.Errorf("expected max drawdown -0.25, got %f", m.MaxDrawdown)
	}
	if diff := math.Abs(m.TotalReturn - 0.30); diff > 1e-9 {
		t.Errorf("expected total return 0.30, got %f", m.TotalReturn)
	}
	if m.MaxDrawdown > 0 {
		t.Errorf("drawdown must be non-positive, got %f", m.MaxDrawdown)
	}
}

func TestComputeSharpe(t *testing.T) {
	// 日收益 {0.1, -0.05}：mean=0.025, 样本标准差=sqrt(0.01125)
	m := calculateMetrics(makePoints(100, 110, 104.5), 100)

	mean := 0.025
	std := math.Sqrt(0.01125)
	want := mean / std * math.Sqrt(252)
	if diff := math.Abs(m.SharpeRatio - want); diff > 1e-9 {
		t.Errorf("sharpe mismatch: got %f want %f", m.SharpeRatio, want)
	}
}

func TestCalculateMetricsEmpty(t *testing.T) {
	m := calculateMetrics(nil, 100000)
	if !math.IsNaN(m.SharpeRatio) {
		t.Errorf("expected NaN sharpe for empty curve, got %f", m.SharpeRatio)
	}
	if m.TotalReturn != 0 || m.MaxDrawdown != 0 {
		t.Errorf("expected zero metrics for empty curve, got %+v", m)
	}
}

func TestCalculateMetricsSinglePoint(t *testing.T) {
	m := calculateMetrics(makePoints(110000), 100000)
	if diff := math.Abs(m.TotalReturn - 0.10); diff > 1e-9 {
		t.Errorf("expected total return 0.10, got %f", m.TotalReturn)
	}
	if !math.IsNaN(m.SharpeRatio) {
		t.Errorf("expected NaN sharpe with a single point, got %f", m.SharpeRatio)
	}
}
