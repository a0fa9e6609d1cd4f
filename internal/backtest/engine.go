package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aibrokers/internal/pipeline"
	"aibrokers/internal/signal"
)

// Config 定义回测参数。
type Config struct {
	Pair           string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	LookbackDays   int
	ShowReasoning  bool
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100000
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	return cfg
}

// Result 汇总回测结果。
type Result struct {
	Metrics     Metrics
	EquityCurve []EquityPoint
	FinalValue  float64
	Portfolio   Portfolio
}

// Engine 按交易日驱动决策流水线并维护账本。
type Engine struct {
	cfg       Config
	prices    PriceProvider
	runner    DecisionRunner
	journal   Journal
	logger    *zap.Logger
	portfolio *Portfolio
}

// NewEngine 构建回测引擎，journal 可以为 nil。
func NewEngine(cfg Config, prices PriceProvider, runner DecisionRunner, journal Journal, logger *zap.Logger) (*Engine, error) {
	if prices == nil {
		return nil, errors.New("backtest: price provider 不能为空")
	}
	if runner == nil {
		return nil, errors.New("backtest: decision runner 不能为空")
	}
	if cfg.Pair == "" {
		return nil, errors.New("backtest: pair 不能为空")
	}
	if cfg.Start.IsZero() || cfg.End.IsZero() || cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("backtest: 日期区间非法 [%s, %s]",
			cfg.Start.Format(dateLayout), cfg.End.Format(dateLayout))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.normalize()

	return &Engine{
		cfg:       cfg,
		prices:    prices,
		runner:    runner,
		journal:   journal,
		logger:    logger,
		portfolio: NewPortfolio(cfg.InitialCapital),
	}, nil
}

const dateLayout = "2006-01-02"

// Run 执行完整回测流程。取消发生在两个交易日之间，
// 账本始终停留在最近一次完整结算后的状态。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	equity := make([]EquityPoint, 0, 32)

	for d := e.cfg.Start; !d.After(e.cfg.End); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}

		point, err := e.step(ctx, d)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{}, err
			}
			// 单日失败只影响当日，回测继续。
			e.logger.Warn("跳过交易日",
				zap.String("date", d.Format(dateLayout)),
				zap.Error(err),
			)
			continue
		}

		equity = append(equity, point)
	}

	return Result{
		Metrics:     calculateMetrics(equity, e.cfg.InitialCapital),
		EquityCurve: equity,
		FinalValue:  e.portfolio.PortfolioValue,
		Portfolio:   *e.portfolio,
	}, nil
}

func (e *Engine) step(ctx context.Context, date time.Time) (EquityPoint, error) {
	lookbackStart := date.AddDate(0, 0, -e.cfg.LookbackDays)

	series, err := e.prices.FetchPrices(ctx, e.cfg.Pair, lookbackStart, date)
	if err != nil {
		return EquityPoint{}, fmt.Errorf("获取回看窗口行情失败: %w", err)
	}

	currentPrice := series.LastClose()
	if currentPrice <= 0 {
		return EquityPoint{}, fmt.Errorf("回看窗口缺少有效收盘价")
	}

	// 先结算既有抵押品，再评估新决策。
	e.portfolio.Settle(currentPrice)

	action, quantity := signal.ActionHold, 0.0
	raw, err := e.runner.Run(ctx, pipeline.Request{
		Pair:          e.cfg.Pair,
		StartDate:     lookbackStart.Format(dateLayout),
		EndDate:       date.Format(dateLayout),
		Portfolio:     e.portfolio.Snapshot(),
		ShowReasoning: e.cfg.ShowReasoning,
	})
	switch {
	case err != nil:
		// 流水线失败按当日观望处理，不中断回测。
		e.logger.Warn("流水线运行失败，当日按观望处理",
			zap.String("date", date.Format(dateLayout)),
			zap.Error(err),
		)
	default:
		decision, decodeErr := signal.DecodeDecision(raw)
		if decodeErr != nil {
			e.logger.Warn("决策解码失败，当日按观望处理",
				zap.String("date", date.Format(dateLayout)),
				zap.String("raw_output", raw),
				zap.Error(decodeErr),
			)
		} else {
			action, quantity = decision.Action, decision.Quantity
		}
	}

	applied := e.portfolio.Execute(action, quantity, currentPrice)
	rejected := applied == 0 && action != signal.ActionHold && quantity > 0
	if rejected {
		e.logger.Warn("交易被拒绝",
			zap.String("date", date.Format(dateLayout)),
			zap.String("action", action),
			zap.Float64("requested", quantity),
			zap.Float64("cash", e.portfolio.Cash),
		)
	}

	totalValue := e.portfolio.MarkToMarket(currentPrice)

	e.logger.Info("交易日结果",
		zap.String("date", date.Format(dateLayout)),
		zap.String("pair", e.cfg.Pair),
		zap.String("action", action),
		zap.Float64("executed", applied),
		zap.Float64("price", currentPrice),
		zap.Float64("cash", e.portfolio.Cash),
		zap.Float64("collateral_long", e.portfolio.CollateralLong),
		zap.Float64("collateral_short", e.portfolio.CollateralShort),
		zap.Float64("total_value", totalValue),
	)

	if e.journal != nil {
		record := TradeRecord{
			Date:            date,
			Pair:            e.cfg.Pair,
			Action:          action,
			Requested:       quantity,
			Applied:         applied,
			Rejected:        rejected,
			Price:           currentPrice,
			Cash:            e.portfolio.Cash,
			CollateralLong:  e.portfolio.CollateralLong,
			CollateralShort: e.portfolio.CollateralShort,
			TotalValue:      totalValue,
		}
		if recordErr := e.journal.RecordTrade(ctx, record); recordErr != nil {
			e.logger.Warn("写入交易流水失败", zap.Error(recordErr))
		}
	}

	return EquityPoint{Date: date, PortfolioValue: totalValue}, nil
}
