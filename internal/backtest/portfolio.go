package backtest

import (
	"math"

	"aibrokers/internal/pipeline"
	"aibrokers/internal/signal"
)

// Portfolio 为回测账本。不变量：多头与空头抵押品至多一边非零，
// 每个交易日先结算再开仓保证了这一点。
type Portfolio struct {
	Cash            float64
	CollateralLong  float64
	CollateralShort float64
	PriceCollateral float64
	PortfolioValue  float64
}

// NewPortfolio 以初始现金创建账本。
func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{Cash: cash, PortfolioValue: cash}
}

// Settle 在评估新决策前把现有抵押品按当前价格换回现金。
// 两个分支都无条件检查，但由于不变量的保证至多一个生效。
func (p *Portfolio) Settle(price float64) {
	if p.CollateralShort != 0 {
		// 本金加空头盈亏：collateral×entry + collateral×(entry−price)
		p.Cash += p.CollateralShort * (2*p.PriceCollateral - price)
		p.CollateralShort = 0
	}
	if p.CollateralLong != 0 {
		p.Cash += p.CollateralLong * price
		p.CollateralLong = 0
	}
}

// Execute 校验并执行交易，quantity 为现金名义金额。
// 返回实际成交的金额：被拒绝（现金不足或金额非正）时为0，账本不变。
func (p *Portfolio) Execute(action string, quantity, price float64) float64 {
	if quantity <= 0 || price <= 0 {
		return 0
	}

	switch action {
	case signal.ActionLong:
		if p.Cash >= quantity {
			p.CollateralLong += round2(quantity / price)
			p.Cash -= quantity
			p.PriceCollateral = price
			return quantity
		}
	case signal.ActionShort:
		if p.Cash > quantity {
			p.CollateralShort += round2(quantity / price)
			p.Cash -= quantity
			p.PriceCollateral = price
			return quantity
		}
	}

	return 0
}

// MarkToMarket 计算并记录当前市值。
func (p *Portfolio) MarkToMarket(price float64) float64 {
	total := p.Cash
	if p.CollateralLong > 0 {
		total = p.Cash + p.CollateralLong*price
	} else if p.CollateralShort > 0 {
		total = p.Cash + p.CollateralShort*(2*p.PriceCollateral-price)
	}
	p.PortfolioValue = total
	return total
}

// Snapshot 返回交给流水线的只读快照。
func (p *Portfolio) Snapshot() pipeline.PortfolioSnapshot {
	return pipeline.PortfolioSnapshot{
		Cash:            p.Cash,
		CollateralLong:  p.CollateralLong,
		CollateralShort: p.CollateralShort,
		PriceCollateral: p.PriceCollateral,
		PortfolioValue:  p.PortfolioValue,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
