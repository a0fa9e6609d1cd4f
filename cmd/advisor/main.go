package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aibrokers/internal/config"
	"aibrokers/internal/log"
	"aibrokers/internal/marketdata"
	"aibrokers/internal/oracle"
	"aibrokers/internal/pipeline"
	"aibrokers/internal/risk"
)

const dateLayout = "2006-01-02"

// advisor 只运行一次决策流水线并打印最终结果，不做任何回放。
func main() {
	var (
		configPath    string
		pair          string
		startDate     string
		endDate       string
		showReasoning bool
	)

	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&pair, "pair", "", "标的币种，例如 BTC")
	flag.StringVar(&startDate, "start", "", "分析开始日期 (YYYY-MM-DD)，默认结束日期往前一个月")
	flag.StringVar(&endDate, "end", "", "分析结束日期 (YYYY-MM-DD)，默认当天")
	flag.BoolVar(&showReasoning, "show-reasoning", false, "输出每个阶段的推理内容")
	flag.Parse()

	if pair == "" {
		fmt.Fprintln(os.Stderr, "必须通过 -pair 指定标的币种")
		os.Exit(1)
	}

	for _, value := range []string{startDate, endDate} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			fmt.Fprintf(os.Stderr, "日期格式非法 %q，应为 YYYY-MM-DD\n", value)
			os.Exit(1)
		}
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

	decider, err := oracle.NewClient(cfg.OpenAI, logger)
	if err != nil {
		logger.Error("初始化决策客户端失败", zap.Error(err))
		os.Exit(1)
	}

	pipe, err := pipeline.New(
		marketdata.NewService(priceClient, oiClient, logger),
		decider,
		risk.NewSizer(cfg.Risk.MaxLossFraction),
		logger,
	)
	if err != nil {
		logger.Error("初始化决策流水线失败", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := pipe.Run(ctx, pipeline.Request{
		Pair:      pair,
		StartDate: startDate,
		EndDate:   endDate,
		Portfolio: pipeline.PortfolioSnapshot{
			Cash:           cfg.Backtest.InitialCapital,
			PortfolioValue: cfg.Backtest.InitialCapital,
		},
		ShowReasoning: showReasoning,
	})
	if err != nil {
		logger.Error("决策流水线运行异常", zap.Error(err))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("最终决策:")
	fmt.Println(result)
}
