package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tier 投注分级
type Tier string

const (
	TierA       Tier = "A"
	TierB       Tier = "B"
	TierC       Tier = "C"
	TierD       Tier = "D"
	TierUnknown Tier = "unknown"
)

// ParseTier 解析分级，无法识别的一律为 unknown
func ParseTier(s string) Tier {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return TierA
	case "B":
		return TierB
	case "C":
		return TierC
	case "D":
		return TierD
	default:
		return TierUnknown
	}
}

// Odds 赔率，可能是小数也可能是原样的字符串（如 "5/2"）
type Odds struct {
	Decimal float64
	Text    string
}

// DecimalOdds 构造数值赔率
func DecimalOdds(v float64) Odds { return Odds{Decimal: v} }

// TextOdds 构造字符串赔率，能解析为数字时转为数值赔率
func TextOdds(s string) Odds {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Odds{Decimal: v}
	}
	return Odds{Text: s}
}

func (o Odds) String() string {
	if o.Text != "" {
		return o.Text
	}
	return strconv.FormatFloat(o.Decimal, 'f', 2, 64)
}

// MarshalJSON 数值赔率输出 number，其他输出 string
func (o Odds) MarshalJSON() ([]byte, error) {
	if o.Text != "" {
		return json.Marshal(o.Text)
	}
	return json.Marshal(o.Decimal)
}

func (o *Odds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = Odds{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = TextOdds(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("odds must be number or string: %w", err)
	}
	*o = Odds{Decimal: v}
	return nil
}

// BetInfo 投注信息，只读，来自统计库
type BetInfo struct {
	BetType       string  `json:"bet_type"`
	Odds          Odds    `json:"odds"`
	Consensus     float64 `json:"consensus"`
	ExpectedValue float64 `json:"expected_value"`
	Tier          Tier    `json:"tier"`
}
