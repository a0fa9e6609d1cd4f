package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// 最终决策动作取值。
const (
	ActionLong  = "long"
	ActionShort = "short"
	ActionHold  = "hold"
)

// ErrDecode 表示载荷无法解码为合法结构。
var ErrDecode = errors.New("信号解码失败")

// Decision 为流水线产出的最终交易指令，quantity 以现金名义金额计。
type Decision struct {
	Action    string  `json:"action"`
	Quantity  float64 `json:"quantity"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// Validate 校验决策字段合法性。
func (d Decision) Validate() error {
	switch d.Action {
	case ActionLong, ActionShort, ActionHold:
	default:
		return fmt.Errorf("action 字段取值非法: %q", d.Action)
	}
	if d.Quantity < 0 {
		return fmt.Errorf("quantity 不能为负: %f", d.Quantity)
	}
	return nil
}

// Encode 将决策序列化为 JSON 文本。
func (d Decision) Encode() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("序列化决策失败: %w", err)
	}
	return string(data), nil
}

// DecodeDecision 从模型输出中提取并校验决策。整个仓库只有这一条解码路径，
// 失败时返回带 ErrDecode 标记的错误，由调用方决定降级策略。
func DecodeDecision(raw string) (Decision, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	decision.Action = strings.ToLower(strings.TrimSpace(decision.Action))
	if err := decision.Validate(); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return decision, nil
}

// extractJSON 截取首个 '{' 到最后一个 '}' 之间的内容，容忍模型输出前后的散文。
func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: 输出中未找到有效JSON: %s", ErrDecode, content)
	}

	return []byte(content[start : end+1]), nil
}
