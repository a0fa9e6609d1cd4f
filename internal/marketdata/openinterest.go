package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aibrokers/internal/config"
)

// OpenInterestClient 通过 Copin positions API 聚合多空双边持仓量。
type OpenInterestClient struct {
	cfg    config.OpenInterestConfig
	logger *zap.Logger
	http   *http.Client
}

// NewOpenInterestClient 创建持仓量客户端。
func NewOpenInterestClient(cfg config.OpenInterestConfig, logger *zap.Logger) (*OpenInterestClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("open_interest.base_url 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenInterestClient{
		cfg:    cfg,
		logger: logger,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// FetchOpenInterest 并发拉取多头与空头总持仓量。
func (c *OpenInterestClient) FetchOpenInterest(ctx context.Context, pair string) (OpenInterest, error) {
	var oi OpenInterest

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		value, err := c.fetchSide(groupCtx, pair, true)
		if err != nil {
			return err
		}
		oi.Long = value
		return nil
	})

	group.Go(func() error {
		value, err := c.fetchSide(groupCtx, pair, false)
		if err != nil {
			return err
		}
		oi.Short = value
		return nil
	})

	if err := group.Wait(); err != nil {
		return OpenInterest{}, err
	}

	c.logger.Debug("持仓量数据获取完成",
		zap.String("pair", pair),
		zap.Float64("long", oi.Long),
		zap.Float64("short", oi.Short),
	)

	return oi, nil
}

type aggregationResponse struct {
	Aggregations struct {
		TotalSize struct {
			Value float64 `json:"value"`
		} `json:"total_size"`
	} `json:"aggregations"`
}

func (c *OpenInterestClient) fetchSide(ctx context.Context, pair string, isLong bool) (float64, error) {
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"isLong": map[string]interface{}{"value": isLong}}},
					map[string]interface{}{"term": map[string]interface{}{"status": map[string]interface{}{"value": "OPEN"}}},
					map[string]interface{}{"term": map[string]interface{}{"pair": map[string]interface{}{"value": pair + "-USDT"}}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"total_size": map[string]interface{}{
				"sum": map[string]interface{}{"field": "size"},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("序列化持仓量查询失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("构造持仓量请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: 请求持仓量接口失败: %v", ErrNoData, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: 持仓量接口返回 %d", ErrNoData, resp.StatusCode)
	}

	var payload aggregationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: 解析持仓量响应失败: %v", ErrNoData, err)
	}

	return payload.Aggregations.TotalSize.Value, nil
}
