package backtest

import (
	"context"
	"errors"

	"aibrokers/internal/pipeline"
)

// DecisionRunnerFunc 允许使用函数作为决策来源。
type DecisionRunnerFunc func(ctx context.Context, req pipeline.Request) (string, error)

func (f DecisionRunnerFunc) Run(ctx context.Context, req pipeline.Request) (string, error) {
	if f == nil {
		return "", errors.New("backtest: 决策函数未实现")
	}
	return f(ctx, req)
}
