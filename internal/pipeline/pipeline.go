package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aibrokers/internal/indicator"
	"aibrokers/internal/marketdata"
	"aibrokers/internal/oracle"
	"aibrokers/internal/risk"
	"aibrokers/internal/signal"
)

const dateLayout = "2006-01-02"

// ResultCannotRun 为数据可行性检查失败时返回的固定结果。
const ResultCannotRun = "cannot run"

// ErrMissingSignal 表示风险阶段在汇合时缺少某个分析师消息。
var ErrMissingSignal = errors.New("缺少分析师信号")

// runState 描述一次运行所处的阶段。
type runState string

const (
	stateInit          runState = "INIT"
	stateDataValidated runState = "DATA_VALIDATED"
	stateMarketData    runState = "MARKET_DATA"
	stateAnalysts      runState = "ANALYSTS"
	stateRisk          runState = "RISK"
	statePortfolio     runState = "PORTFOLIO_DECISION"
	stateDone          runState = "DONE"
	stateRejected      runState = "REJECTED"
)

// Oracle 为注入的决策模型接口，超时与重试由实现方负责。
type Oracle interface {
	Decide(ctx context.Context, prompt string) (string, error)
}

// MarketData 为市场数据服务接口。
type MarketData interface {
	Check(ctx context.Context, pair string, start, end time.Time) error
	Snapshot(ctx context.Context, pair string, start, end time.Time) (marketdata.PriceSeries, marketdata.OpenInterest, error)
}

// Request 为一次流水线运行的输入。
type Request struct {
	Pair          string
	StartDate     string
	EndDate       string
	Portfolio     PortfolioSnapshot
	ShowReasoning bool
}

// Pipeline 把市场数据、分析师、风险测算与最终决策串成一条固定的阶段链。
// 构造后不可变，可在多次串行运行间复用。
type Pipeline struct {
	market MarketData
	oracle Oracle
	sizer  *risk.Sizer
	logger *zap.Logger
}

// New 构建决策流水线。
func New(market MarketData, decider Oracle, sizer *risk.Sizer, logger *zap.Logger) (*Pipeline, error) {
	if market == nil {
		return nil, errors.New("pipeline: market data 不能为空")
	}
	if decider == nil {
		return nil, errors.New("pipeline: oracle 不能为空")
	}
	if sizer == nil {
		sizer = risk.NewSizer(risk.DefaultMaxLossFraction)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		market: market,
		oracle: decider,
		sizer:  sizer,
		logger: logger,
	}, nil
}

// Run 执行一次完整的决策流程，返回最后一条消息的内容。
// 数据可行性检查失败时返回固定的 ResultCannotRun，不视为错误。
func (p *Pipeline) Run(ctx context.Context, req Request) (string, error) {
	state := stateInit

	startStr, endStr, err := resolveDates(req.StartDate, req.EndDate, time.Now().UTC())
	if err != nil {
		return "", err
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return "", fmt.Errorf("解析开始日期失败: %w", err)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return "", fmt.Errorf("解析结束日期失败: %w", err)
	}

	// 可行性探测先于一切阶段执行，任一数据源不可用则直接拒绝本次运行。
	if checkErr := p.market.Check(ctx, req.Pair, start, end); checkErr != nil {
		p.advance(&state, stateRejected)
		p.logger.Warn("数据可行性检查未通过",
			zap.String("pair", req.Pair),
			zap.String("start", startStr),
			zap.String("end", endStr),
			zap.Error(checkErr),
		)
		return ResultCannotRun, nil
	}
	p.advance(&state, stateDataValidated)

	rc := &Context{
		Data: Data{
			Pair:      req.Pair,
			StartDate: startStr,
			EndDate:   endStr,
			Portfolio: req.Portfolio,
		},
		Metadata: Metadata{ShowReasoning: req.ShowReasoning},
	}

	p.advance(&state, stateMarketData)
	if err := p.runMarketData(ctx, rc, start, end); err != nil {
		return "", err
	}

	p.advance(&state, stateAnalysts)
	if err := p.runAnalysts(ctx, rc); err != nil {
		return "", err
	}

	p.advance(&state, stateRisk)
	if err := p.runRisk(rc); err != nil {
		return "", err
	}

	p.advance(&state, statePortfolio)
	if err := p.runPortfolio(ctx, rc); err != nil {
		return "", err
	}

	p.advance(&state, stateDone)
	return rc.Messages[len(rc.Messages)-1].Content, nil
}

func (p *Pipeline) advance(state *runState, next runState) {
	p.logger.Debug("流水线状态迁移",
		zap.String("from", string(*state)),
		zap.String("to", string(next)),
	)
	*state = next
}

// record 追加命名消息，并在开启推理展示时把内容写入日志。
func (p *Pipeline) record(rc *Context, name, content string) error {
	if err := rc.append(name, content); err != nil {
		return err
	}
	if rc.Metadata.ShowReasoning {
		p.logger.Info("阶段输出",
			zap.String("stage", name),
			zap.String("content", content),
		)
	}
	return nil
}

func (p *Pipeline) runMarketData(ctx context.Context, rc *Context, start, end time.Time) error {
	prices, oi, err := p.market.Snapshot(ctx, rc.Data.Pair, start, end)
	if err != nil {
		return fmt.Errorf("获取市场数据失败: %w", err)
	}

	rc.Data.Prices = prices
	rc.Data.OpenInterest = oi

	content := fmt.Sprintf("candles=%d long_oi=%.2f short_oi=%.2f", len(prices), oi.Long, oi.Short)
	return p.record(rc, MessageMarketData, content)
}

// runAnalysts 并发执行技术与情绪两个无相互依赖的阶段，
// 两者都完成后才按固定顺序写入消息。
func (p *Pipeline) runAnalysts(ctx context.Context, rc *Context) error {
	var technicalOut, sentimentOut string

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		out, err := p.runTechnical(groupCtx, rc)
		if err != nil {
			return err
		}
		technicalOut = out
		return nil
	})

	group.Go(func() error {
		out, err := p.runSentiment(groupCtx, rc)
		if err != nil {
			return err
		}
		sentimentOut = out
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	if err := p.record(rc, MessageTechnical, technicalOut); err != nil {
		return err
	}
	return p.record(rc, MessageSentiment, sentimentOut)
}

func (p *Pipeline) runTechnical(ctx context.Context, rc *Context) (string, error) {
	summary, err := indicator.Compute(rc.Data.Prices)
	if err != nil {
		return "", fmt.Errorf("技术分析阶段失败: %w", err)
	}

	prompt, err := oracle.BuildTechnicalPrompt(rc.Data.Pair, summary)
	if err != nil {
		return "", fmt.Errorf("技术分析阶段失败: %w", err)
	}

	out, err := p.oracle.Decide(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("技术分析阶段失败: %w", err)
	}
	return out, nil
}

func (p *Pipeline) runSentiment(ctx context.Context, rc *Context) (string, error) {
	oi := rc.Data.OpenInterest
	prompt, err := oracle.BuildSentimentPrompt(oracle.SentimentInput{
		Pair:    rc.Data.Pair,
		LongOI:  oi.Long,
		ShortOI: oi.Short,
		Ratio:   oi.Ratio(),
	})
	if err != nil {
		return "", fmt.Errorf("情绪分析阶段失败: %w", err)
	}

	out, err := p.oracle.Decide(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("情绪分析阶段失败: %w", err)
	}
	return out, nil
}

type riskMetrics struct {
	Volatility float64 `json:"volatility"`
	StopLoss   string  `json:"stop_loss"`
}

type riskMessage struct {
	MaxPositionSize float64     `json:"max_position_size"`
	RiskMetrics     riskMetrics `json:"risk_metrics"`
	Reasoning       string      `json:"reasoning"`
}

// runRisk 汇合两个分析师信号并计算仓位上限。
// 任一信号缺失或无法解码都会让本次运行失败，不做降级。
func (p *Pipeline) runRisk(rc *Context) error {
	technical, ok := rc.message(MessageTechnical)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingSignal, MessageTechnical)
	}
	sentiment, ok := rc.message(MessageSentiment)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingSignal, MessageSentiment)
	}

	if _, err := signal.DecodeAnalyst(technical.Content); err != nil {
		return fmt.Errorf("解析技术信号失败: %w", err)
	}
	if _, err := signal.DecodeAnalyst(sentiment.Content); err != nil {
		return fmt.Errorf("解析情绪信号失败: %w", err)
	}

	assessment := p.sizer.Size(rc.Data.Prices.Closes(), rc.Data.Portfolio.Cash)

	payload, err := json.Marshal(riskMessage{
		MaxPositionSize: assessment.MaxPositionSize,
		RiskMetrics: riskMetrics{
			Volatility: assessment.Volatility,
			StopLoss:   fmt.Sprintf("%.2f%%", assessment.StopLoss*100),
		},
		Reasoning: assessment.Reasoning,
	})
	if err != nil {
		return fmt.Errorf("序列化风险消息失败: %w", err)
	}

	return p.record(rc, MessageRisk, string(payload))
}

func (p *Pipeline) runPortfolio(ctx context.Context, rc *Context) error {
	technical, _ := rc.message(MessageTechnical)
	sentiment, _ := rc.message(MessageSentiment)
	riskMsg, ok := rc.message(MessageRisk)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingSignal, MessageRisk)
	}

	prompt, err := oracle.BuildPortfolioPrompt(oracle.PortfolioInput{
		Pair:             rc.Data.Pair,
		TechnicalContent: technical.Content,
		SentimentContent: sentiment.Content,
		RiskContent:      riskMsg.Content,
		Cash:             rc.Data.Portfolio.Cash,
		CollateralLong:   rc.Data.Portfolio.CollateralLong,
		CollateralShort:  rc.Data.Portfolio.CollateralShort,
		PriceCollateral:  rc.Data.Portfolio.PriceCollateral,
	})
	if err != nil {
		return fmt.Errorf("最终决策阶段失败: %w", err)
	}

	out, err := p.oracle.Decide(ctx, prompt)
	if err != nil {
		return fmt.Errorf("最终决策阶段失败: %w", err)
	}

	return p.record(rc, MessagePortfolio, out)
}

// resolveDates 填充缺省日期：结束日期默认取当天，
// 开始日期默认取结束日期往前一个自然月（一月自动回退到上一年）。
func resolveDates(startDate, endDate string, now time.Time) (string, string, error) {
	end := endDate
	if end == "" {
		end = now.Format(dateLayout)
	}

	endTime, err := time.Parse(dateLayout, end)
	if err != nil {
		return "", "", fmt.Errorf("结束日期格式非法 %q: %w", end, err)
	}

	start := startDate
	if start == "" {
		start = endTime.AddDate(0, -1, 0).Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, start); err != nil {
		return "", "", fmt.Errorf("开始日期格式非法 %q: %w", start, err)
	}

	return start, end, nil
}
