package markup

import (
	"regexp"
	"strings"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

var (
	bettingHeading = regexp.MustCompile(`(?i)(suggested betting markets|betting)[^\n]*\n`)
	// - **Match Result:** Back Arsenal to win, odds around **1.85**.
	recommendationLine = regexp.MustCompile(`^\s*[-*]\s+\*\*(.+?):?\*\*:?\s*(.+)$`)
	boldNumber         = regexp.MustCompile(`\*\*(\d+(?:\.\d+)?)\*\*`)
)

// Recommendation 分析文本中的一条投注建议
type Recommendation struct {
	Type string `json:"type"`
	Pick string `json:"pick"`
	Odds string `json:"odds,omitempty"`
}

// Betting 投注小节及其中的建议
type Betting struct {
	Section         string           `json:"section"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// ExtractBettingInsights 取第一个提到 betting 的行之后、下一个 # 标题之前的内容，
// 并解析其中 "- **类型:** 建议" 形式的条目。没有投注小节返回 nil
func ExtractBettingInsights(text string) *Betting {
	loc := bettingHeading.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	section := text[loc[1]:]
	if end := strings.Index(section, "\n#"); end >= 0 {
		section = section[:end]
	}
	section = strings.TrimSpace(section)
	if section == "" {
		return nil
	}

	b := &Betting{Section: section}
	for _, line := range strings.Split(section, "\n") {
		m := recommendationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec := Recommendation{Type: strings.TrimSpace(m[1]), Pick: strings.TrimSpace(m[2])}
		if odds := boldNumber.FindStringSubmatch(rec.Pick); odds != nil {
			rec.Odds = odds[1]
		}
		rec.Pick = strings.TrimSpace(strings.ReplaceAll(rec.Pick, "**", ""))
		b.Recommendations = append(b.Recommendations, rec)
	}
	return b
}

// BetInfos 以建议类型为键转换为投注信息，无建议返回 nil
func (b *Betting) BetInfos() map[string]model.BetInfo {
	if b == nil || len(b.Recommendations) == 0 {
		return nil
	}
	out := make(map[string]model.BetInfo, len(b.Recommendations))
	for _, rec := range b.Recommendations {
		info := model.BetInfo{BetType: rec.Type, Tier: model.TierUnknown}
		if rec.Odds != "" {
			info.Odds = model.TextOdds(rec.Odds)
		} else {
			info.Odds = model.TextOdds(rec.Pick)
		}
		out[rec.Type] = info
	}
	return out
}
