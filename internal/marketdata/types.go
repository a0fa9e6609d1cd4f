package marketdata

import "time"

// Timeframe1d 为回测使用的K线周期。
const Timeframe1d = "1d"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// PriceSeries 为按时间升序排列的K线序列。
type PriceSeries []Candle

// Len 返回序列长度。
func (s PriceSeries) Len() int {
	return len(s)
}

// Closes 返回收盘价序列。
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Highs 返回最高价序列。
func (s PriceSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

// Lows 返回最低价序列。
func (s PriceSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}

// Volumes 返回成交量序列。
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Volume
	}
	return out
}

// LastClose 返回最后一根K线的收盘价，序列为空时返回0。
func (s PriceSeries) LastClose() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Close
}

// OpenInterest 为多空双边持仓量。
type OpenInterest struct {
	Long  float64
	Short float64
}

// Ratio 返回多空比，空头为0时返回0。
func (oi OpenInterest) Ratio() float64 {
	if oi.Short == 0 {
		return 0
	}
	return oi.Long / oi.Short
}
