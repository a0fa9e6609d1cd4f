package signal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnalystSignal 为分析师阶段产出的结构化信号。下游把它作为上下文透传，
// 不对数值做进一步解读。
type AnalystSignal struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Validate 校验信号字段合法性。
func (s AnalystSignal) Validate() error {
	if strings.TrimSpace(s.Signal) == "" {
		return fmt.Errorf("signal 不能为空")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence 必须位于[0,1]: %f", s.Confidence)
	}
	return nil
}

// DecodeAnalyst 从分析师消息中提取信号，失败时返回带 ErrDecode 标记的错误。
func DecodeAnalyst(raw string) (AnalystSignal, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return AnalystSignal{}, err
	}

	var sig AnalystSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return AnalystSignal{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	sig.Signal = strings.ToLower(strings.TrimSpace(sig.Signal))
	if err := sig.Validate(); err != nil {
		return AnalystSignal{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return sig, nil
}
