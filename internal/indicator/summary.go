package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"aibrokers/internal/marketdata"
)

// minCandles 为指标计算所需的最少K线数量，受限于最长的14周期指标。
const minCandles = 15

// Summary 汇总回看窗口内的常用技术指标，用于拼装技术分析提示词。
type Summary struct {
	Close          float64 `json:"close"`
	PreviousClose  float64 `json:"previous_close"`
	EMA12          float64 `json:"ema_12"`
	EMA26          float64 `json:"ema_26"`
	RSI14          float64 `json:"rsi_14"`
	ATR14          float64 `json:"atr_14"`
	BollingerUpper float64 `json:"bollinger_upper"`
	BollingerLower float64 `json:"bollinger_lower"`
	VolumeRatio    float64 `json:"volume_ratio"`
}

// Compute 依据日线窗口计算指标汇总。
func Compute(series marketdata.PriceSeries) (Summary, error) {
	if series.Len() < minCandles {
		return Summary{}, fmt.Errorf("计算指标失败: K线数量不足，至少需要 %d 根，当前 %d", minCandles, series.Len())
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	ema12 := talib.Ema(closes, 12)
	ema26 := talib.Ema(closes, 26)
	rsi := talib.Rsi(closes, 14)
	atr := talib.Atr(highs, lows, closes, 14)
	bbUpper, _, bbLower := talib.BBands(closes, 20, 2, 2, talib.EMA)

	volumeAvg := average(tail(volumes, 20))
	volumeRatio := safeDivide(last(volumes), volumeAvg)

	return Summary{
		Close:          last(closes),
		PreviousClose:  prev(closes),
		EMA12:          last(ema12),
		EMA26:          last(ema26),
		RSI14:          last(rsi),
		ATR14:          last(atr),
		BollingerUpper: last(bbUpper),
		BollingerLower: last(bbLower),
		VolumeRatio:    volumeRatio,
	}, nil
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

func prev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return values[len(values)-2]
}

func tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
