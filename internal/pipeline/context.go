package pipeline

import (
	"fmt"
	"time"

	"aibrokers/internal/marketdata"
)

// 各阶段的消息名称，风险阶段按名称（而非完成顺序）取信号。
const (
	MessageMarketData = "market_data"
	MessageTechnical  = "technical_analyst"
	MessageSentiment  = "sentiment"
	MessageRisk       = "risk_management"
	MessagePortfolio  = "portfolio_management"
)

// Message 为某个阶段产出的命名文本消息。
type Message struct {
	Name      string
	Content   string
	CreatedAt time.Time
}

// PortfolioSnapshot 为投资组合在本次运行时刻的只读快照。
type PortfolioSnapshot struct {
	Cash            float64
	CollateralLong  float64
	CollateralShort float64
	PriceCollateral float64
	PortfolioValue  float64
}

// Data 为各阶段共享的数据区。每个字段只由一个阶段写入：
// Pair/StartDate/EndDate/Portfolio 在运行开始时写入，
// Prices/OpenInterest 由市场数据阶段写入，下游只读。
type Data struct {
	Pair         string
	StartDate    string
	EndDate      string
	Portfolio    PortfolioSnapshot
	Prices       marketdata.PriceSeries
	OpenInterest marketdata.OpenInterest
}

// Metadata 为本次运行的控制开关。
type Metadata struct {
	ShowReasoning bool
}

// Context 为一次流水线运行的共享上下文。
// 消息只追加不修改，同名消息在一次运行中至多出现一次。
type Context struct {
	Messages []Message
	Data     Data
	Metadata Metadata
}

func (c *Context) append(name, content string) error {
	if _, ok := c.message(name); ok {
		return fmt.Errorf("消息 %q 在本次运行中已存在", name)
	}
	c.Messages = append(c.Messages, Message{
		Name:      name,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (c *Context) message(name string) (Message, bool) {
	for _, msg := range c.Messages {
		if msg.Name == name {
			return msg, true
		}
	}
	return Message{}, false
}
