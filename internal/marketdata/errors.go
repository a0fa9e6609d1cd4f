package marketdata

import "errors"

var (
	// ErrNoData 表示请求区间内没有可用的行情数据。
	ErrNoData = errors.New("行情数据不可用")
)
