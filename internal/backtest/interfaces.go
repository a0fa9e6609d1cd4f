package backtest

import (
	"context"
	"time"

	"aibrokers/internal/marketdata"
	"aibrokers/internal/pipeline"
)

// PriceProvider 提供回看窗口的历史行情。
type PriceProvider interface {
	FetchPrices(ctx context.Context, pair string, start, end time.Time) (marketdata.PriceSeries, error)
}

// DecisionRunner 驱动一次决策流水线运行，便于在回测中注入不同实现。
type DecisionRunner interface {
	Run(ctx context.Context, req pipeline.Request) (string, error)
}

// TradeRecord 为单个交易日的流水记录。
type TradeRecord struct {
	Date            time.Time
	Pair            string
	Action          string
	Requested       float64
	Applied         float64
	Rejected        bool
	Price           float64
	Cash            float64
	CollateralLong  float64
	CollateralShort float64
	TotalValue      float64
}

// Journal 记录交易流水，仅用于观测，回测过程不会读取它。
type Journal interface {
	RecordTrade(ctx context.Context, record TradeRecord) error
}
