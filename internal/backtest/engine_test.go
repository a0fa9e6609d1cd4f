package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"aibrokers/internal/marketdata"
	"aibrokers/internal/pipeline"
)

type stubPrices struct {
	price   float64
	failOn  map[string]bool
	fetched int
}

func (s *stubPrices) FetchPrices(_ context.Context, _ string, _, end time.Time) (marketdata.PriceSeries, error) {
	s.fetched++
	if s.failOn[end.Format("2006-01-02")] {
		return nil, errors.New("行情数据不可用")
	}

	series := make(marketdata.PriceSeries, 0, 20)
	day := end.AddDate(0, 0, -20)
	for i := 0; i < 20; i++ {
		series = append(series, marketdata.Candle{
			Timestamp: day.AddDate(0, 0, i),
			Open:      s.price,
			High:      s.price,
			Low:       s.price,
			Close:     s.price,
			Volume:    100,
		})
	}
	return series, nil
}

type stubJournal struct {
	records []TradeRecord
}

func (s *stubJournal) RecordTrade(_ context.Context, record TradeRecord) error {
	s.records = append(s.records, record)
	return nil
}

func holdRunner() DecisionRunnerFunc {
	return func(context.Context, pipeline.Request) (string, error) {
		return `{"action": "hold", "quantity": 0}`, nil
	}
}

func engineConfig() Config {
	return Config{
		Pair:           "BTC",
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), // 周一
		End:            time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		InitialCapital: 100000,
		LookbackDays:   30,
	}
}

func TestEngineHoldKeepsEquityFlat(t *testing.T) {
	prices := &stubPrices{price: 50000}
	engine, err := NewEngine(engineConfig(), prices, holdRunner(), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 1月1日到7日只有5个工作日
	if len(result.EquityCurve) != 5 {
		t.Fatalf("expected 5 equity points, got %d", len(result.EquityCurve))
	}
	for _, point := range result.EquityCurve {
		if point.PortfolioValue != 100000 {
			t.Errorf("expected flat equity at 100000, got %f on %s",
				point.PortfolioValue, point.Date.Format("2006-01-02"))
		}
	}
	if result.FinalValue != 100000 {
		t.Errorf("expected final value 100000, got %f", result.FinalValue)
	}
}

func TestEngineSkipsWeekends(t *testing.T) {
	prices := &stubPrices{price: 50000}
	cfg := engineConfig()
	cfg.Start = time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC) // 周六
	cfg.End = time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)   // 周日

	engine, err := NewEngine(cfg, prices, holdRunner(), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.EquityCurve) != 0 {
		t.Errorf("expected no equity points across a weekend, got %d", len(result.EquityCurve))
	}
	if prices.fetched != 0 {
		t.Errorf("expected no price fetches across a weekend, got %d", prices.fetched)
	}
}

func TestEngineLongThenSettle(t *testing.T) {
	prices := &stubPrices{price: 50000}
	journal := &stubJournal{}

	first := true
	runner := DecisionRunnerFunc(func(context.Context, pipeline.Request) (string, error) {
		if first {
			first = false
			return `{"action": "long", "quantity": 50000}`, nil
		}
		return `{"action": "hold", "quantity": 0}`, nil
	})

	engine, err := NewEngine(engineConfig(), prices, runner, journal, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(journal.records) != 5 {
		t.Fatalf("expected 5 journal records, got %d", len(journal.records))
	}
	opening := journal.records[0]
	if opening.Action != "long" || opening.Applied != 50000 || opening.Rejected {
		t.Errorf("unexpected opening record: %+v", opening)
	}
	if opening.CollateralLong != 1.00 || opening.Cash != 50000 {
		t.Errorf("unexpected ledger after opening: %+v", opening)
	}

	// 价格不变：开仓日市值不变，次日结算后现金归位。
	if result.Portfolio.Cash != 100000 || result.Portfolio.CollateralLong != 0 {
		t.Errorf("expected position settled back to cash, got %+v", result.Portfolio)
	}
	if result.FinalValue != 100000 {
		t.Errorf("expected final value 100000, got %f", result.FinalValue)
	}
}

func TestEngineRejectedTradeReportsZero(t *testing.T) {
	prices := &stubPrices{price: 50000}
	journal := &stubJournal{}

	runner := DecisionRunnerFunc(func(context.Context, pipeline.Request) (string, error) {
		return `{"action": "long", "quantity": 200000}`, nil
	})

	engine, err := NewEngine(engineConfig(), prices, runner, journal, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for _, record := range journal.records {
		if record.Applied != 0 || !record.Rejected {
			t.Errorf("expected rejected record with applied=0, got %+v", record)
		}
		if record.Requested != 200000 {
			t.Errorf("expected requested=200000, got %f", record.Requested)
		}
	}
	if result.Portfolio.Cash != 100000 {
		t.Errorf("rejected trades must not touch the ledger, got cash=%f", result.Portfolio.Cash)
	}
}

func TestEngineUnparsableDecisionHolds(t *testing.T) {
	prices := &stubPrices{price: 50000}
	journal := &stubJournal{}

	runner := DecisionRunnerFunc(func(context.Context, pipeline.Request) (string, error) {
		return "今日模型输出了一段无法解析的文字", nil
	})

	engine, err := NewEngine(engineConfig(), prices, runner, journal, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for _, record := range journal.records {
		if record.Action != "hold" || record.Rejected {
			t.Errorf("unparsable output should degrade to hold, got %+v", record)
		}
	}
	if result.Portfolio.Cash != 100000 {
		t.Errorf("expected untouched ledger, got cash=%f", result.Portfolio.Cash)
	}
}

func TestEngineSkipsFailedDay(t *testing.T) {
	prices := &stubPrices{
		price:  50000,
		failOn: map[string]bool{"2024-01-03": true},
	}

	engine, err := NewEngine(engineConfig(), prices, holdRunner(), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.EquityCurve) != 4 {
		t.Errorf("expected 4 equity points with one failed day, got %d", len(result.EquityCurve))
	}
	for _, point := range result.EquityCurve {
		if point.Date.Format("2006-01-02") == "2024-01-03" {
			t.Errorf("failed day must not appear in the equity curve")
		}
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	prices := &stubPrices{price: 50000}
	engine, err := NewEngine(engineConfig(), prices, holdRunner(), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewEngineValidation(t *testing.T) {
	prices := &stubPrices{price: 50000}

	if _, err := NewEngine(engineConfig(), nil, holdRunner(), nil, nil); err == nil {
		t.Errorf("expected error for nil price provider")
	}
	if _, err := NewEngine(engineConfig(), prices, nil, nil, nil); err == nil {
		t.Errorf("expected error for nil runner")
	}

	cfg := engineConfig()
	cfg.Start, cfg.End = cfg.End, cfg.Start
	if _, err := NewEngine(cfg, prices, holdRunner(), nil, nil); err == nil {
		t.Errorf("expected error for inverted date range")
	}
}
