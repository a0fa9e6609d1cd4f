package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PriceProvider 提供历史K线数据。
type PriceProvider interface {
	FetchPrices(ctx context.Context, pair string, start, end time.Time) (PriceSeries, error)
}

// OpenInterestProvider 提供多空持仓量数据。
type OpenInterestProvider interface {
	FetchOpenInterest(ctx context.Context, pair string) (OpenInterest, error)
}

// Service 聚合行情与持仓量两个数据源。
type Service struct {
	prices PriceProvider
	oi     OpenInterestProvider
	logger *zap.Logger
}

// NewService 创建市场数据服务。
func NewService(prices PriceProvider, oi OpenInterestProvider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		prices: prices,
		oi:     oi,
		logger: logger,
	}
}

// Snapshot 并发拉取K线与持仓量数据。
func (s *Service) Snapshot(ctx context.Context, pair string, start, end time.Time) (PriceSeries, OpenInterest, error) {
	var (
		series PriceSeries
		oi     OpenInterest
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := s.prices.FetchPrices(groupCtx, pair, start, end)
		if err != nil {
			return err
		}
		series = data
		return nil
	})

	group.Go(func() error {
		data, err := s.oi.FetchOpenInterest(groupCtx, pair)
		if err != nil {
			return err
		}
		oi = data
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, OpenInterest{}, err
	}

	s.logger.Debug("市场数据快照获取完成",
		zap.String("pair", pair),
		zap.Int("candles", len(series)),
		zap.Float64("long_oi", oi.Long),
		zap.Float64("short_oi", oi.Short),
	)

	return series, oi, nil
}

// Check 在流水线运行前做一次可行性探测，两个数据源任一失败即判定不可运行。
// 这是一次真实的预拉取，而不是对后续结果的缓存。
func (s *Service) Check(ctx context.Context, pair string, start, end time.Time) error {
	_, _, err := s.Snapshot(ctx, pair, start, end)
	return err
}
