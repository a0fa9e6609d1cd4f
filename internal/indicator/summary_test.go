package indicator

import (
	"testing"
	"time"

	"aibrokers/internal/marketdata"
)

func makeSeries(n int) marketdata.PriceSeries {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(marketdata.PriceSeries, 0, n)
	for i := 0; i < n; i++ {
		price := 100.0 + float64(i)
		series = append(series, marketdata.Candle{
			Timestamp: day.AddDate(0, 0, i),
			Open:      price - 1,
			High:      price + 2,
			Low:       price - 2,
			Close:     price,
			Volume:    1000 + float64(i)*10,
		})
	}
	return series
}

func TestComputeRequiresMinimumWindow(t *testing.T) {
	if _, err := Compute(makeSeries(minCandles - 1)); err == nil {
		t.Error("expected error for short window")
	}
	if _, err := Compute(makeSeries(minCandles)); err != nil {
		t.Errorf("expected minimum window to succeed, got %v", err)
	}
}

func TestComputeBasicFields(t *testing.T) {
	series := makeSeries(30)

	summary, err := Compute(series)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if summary.Close != 129 {
		t.Errorf("expected close=129, got %f", summary.Close)
	}
	if summary.PreviousClose != 128 {
		t.Errorf("expected previous close=128, got %f", summary.PreviousClose)
	}
	// 单调上涨序列：RSI 高位，短均线高于长均线
	if summary.RSI14 <= 50 {
		t.Errorf("expected elevated RSI for an uptrend, got %f", summary.RSI14)
	}
	if summary.EMA12 <= summary.EMA26 {
		t.Errorf("expected EMA12 > EMA26 in an uptrend, got %f vs %f", summary.EMA12, summary.EMA26)
	}
	if summary.ATR14 <= 0 {
		t.Errorf("expected positive ATR, got %f", summary.ATR14)
	}
	if summary.BollingerUpper <= summary.BollingerLower {
		t.Errorf("expected upper band above lower band, got %f vs %f",
			summary.BollingerUpper, summary.BollingerLower)
	}
	if summary.VolumeRatio <= 0 {
		t.Errorf("expected positive volume ratio, got %f", summary.VolumeRatio)
	}
}
