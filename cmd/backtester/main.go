package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aibrokers/internal/backtest"
	"aibrokers/internal/config"
	"aibrokers/internal/journal"
	"aibrokers/internal/log"
	"aibrokers/internal/marketdata"
	"aibrokers/internal/oracle"
	"aibrokers/internal/pipeline"
	"aibrokers/internal/risk"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		configPath    string
		pair          string
		startDate     string
		endDate       string
		capital       float64
		showReasoning bool
	)

	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&pair, "pair", "", "标的币种，例如 BTC")
	flag.StringVar(&startDate, "start", "", "回测开始日期 (YYYY-MM-DD)，默认结束日期往前一个月")
	flag.StringVar(&endDate, "end", "", "回测结束日期 (YYYY-MM-DD)，默认当天")
	flag.Float64Var(&capital, "capital", 0, "初始资金，默认取配置 backtest.initial_capital")
	flag.BoolVar(&showReasoning, "show-reasoning", false, "输出每个阶段的推理内容")
	flag.Parse()

	if pair == "" {
		fmt.Fprintln(os.Stderr, "必须通过 -pair 指定标的币种")
		os.Exit(1)
	}

	// 日期格式错误在任何外部调用发生前直接失败。
	end, err := parseDateOr(endDate, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "结束日期非法: %v\n", err)
		os.Exit(1)
	}
	start, err := parseDateOr(startDate, end.AddDate(0, -1, 0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "开始日期非法: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if capital <= 0 {
		capital = cfg.Backtest.InitialCapital
	}

	priceClient, err := marketdata.NewClient(cfg.Market, logger)
	if err != nil {
		logger.Error("初始化行情客户端失败", zap.Error(err))
		os.Exit(1)
	}

	oiClient, err := marketdata.NewOpenInterestClient(cfg.OpenInterest, logger)
	if err != nil {
		logger.Error("初始化持仓量客户端失败", zap.Error(err))
		os.Exit(1)
	}

	marketSvc := marketdata.NewService(priceClient, oiClient, logger)

	decider, err := oracle.NewClient(cfg.OpenAI, logger)
	if err != nil {
		logger.Error("初始化决策客户端失败", zap.Error(err))
		os.Exit(1)
	}

	pipe, err := pipeline.New(marketSvc, decider, risk.NewSizer(cfg.Risk.MaxLossFraction), logger)
	if err != nil {
		logger.Error("初始化决策流水线失败", zap.Error(err))
		os.Exit(1)
	}

	var tradeJournal backtest.Journal
	if cfg.Database.Enabled {
		j, err := journal.Open(cfg.Database, logger)
		if err != nil {
			logger.Error("初始化交易流水库失败", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Warn("关闭交易流水库失败", zap.Error(closeErr))
			}
		}()
		tradeJournal = j
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Pair:           pair,
		Start:          start,
		End:            end,
		InitialCapital: capital,
		LookbackDays:   cfg.Backtest.LookbackDays,
		ShowReasoning:  showReasoning,
	}, priceClient, pipe, tradeJournal, logger)
	if err != nil {
		logger.Error("初始化回测引擎失败", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := engine.Run(ctx)
	if err != nil {
		logger.Error("回测运行异常", zap.Error(err))
		os.Exit(1)
	}

	printSummary(result)
	logger.Info("回测完成",
		zap.Int("trading_days", len(result.EquityCurve)),
		zap.Float64("final_value", result.FinalValue),
	)
}

func parseDateOr(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		day := fallback
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, value)
}

func printSummary(result backtest.Result) {
	m := result.Metrics

	fmt.Println()
	fmt.Println("========== 回测结果 ==========")
	fmt.Printf("总收益率:   %.2f%%\n", m.TotalReturn*100)
	if math.IsNaN(m.SharpeRatio) {
		fmt.Println("夏普比率:   N/A (日收益无波动)")
	} else {
		fmt.Printf("夏普比率:   %.2f\n", m.SharpeRatio)
	}
	fmt.Printf("最大回撤:   %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("最终市值:   %.2f\n", result.FinalValue)
}
