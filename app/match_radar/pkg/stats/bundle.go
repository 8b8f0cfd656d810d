package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// LimitedNote 缺少球队数据时的占位说明
const LimitedNote = "Limited statistics available"

// headToHeadLimit 交锋记录条数
const headToHeadLimit = 10

// Bundle 一场比赛的结构化数据，作为 insights 阶段的输入
type Bundle struct {
	Home       *TeamStats  `json:"home_team"`
	Away       *TeamStats  `json:"away_team"`
	Match      *Match      `json:"match,omitempty"`
	Standings  []TeamStats `json:"league_standings,omitempty"`
	HeadToHead []Match     `json:"head_to_head,omitempty"`
	LeagueID   int64       `json:"-"`
}

// Collect 汇总比赛数据。单项查询失败只记录日志并按未命中处理，
// 缺失的球队以 LimitedNote 占位；仅在 ctx 结束时返回错误
func Collect(ctx context.Context, gw Gateway, q model.MatchQuery) (*Bundle, error) {
	log := logger.Component("stats")
	b := &Bundle{}

	var err error
	if b.Home, err = gw.TeamStats(ctx, q.HomeTeam); err != nil {
		log.Warnf("获取主队数据失败 [%s]: %v", q.HomeTeam, err)
	}
	if b.Away, err = gw.TeamStats(ctx, q.AwayTeam); err != nil {
		log.Warnf("获取客队数据失败 [%s]: %v", q.AwayTeam, err)
	}
	if b.Home == nil {
		b.Home = &TeamStats{TeamName: q.HomeTeam, Note: LimitedNote}
	}
	if b.Away == nil {
		b.Away = &TeamStats{TeamName: q.AwayTeam, Note: LimitedNote}
	}

	if b.Match, err = gw.Match(ctx, q.HomeTeam, q.AwayTeam, q.Date); err != nil {
		log.Warnf("获取比赛数据失败 [%s]: %v", q.Title(), err)
	}
	if q.League != "" {
		if b.Standings, err = gw.LeagueStandings(ctx, q.League); err != nil {
			log.Warnf("获取积分榜失败 [%s]: %v", q.League, err)
		}
		if b.LeagueID, err = gw.LeagueID(ctx, q.League); err != nil {
			log.Warnf("获取联赛 ID 失败 [%s]: %v", q.League, err)
		}
	}
	if b.LeagueID == 0 && b.Match != nil {
		b.LeagueID = b.Match.LeagueID
	}
	if b.HeadToHead, err = gw.HeadToHead(ctx, q.HomeTeam, q.AwayTeam, headToHeadLimit); err != nil {
		log.Warnf("获取交锋记录失败 [%s]: %v", q.Title(), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// Empty 除占位外没有任何数据
func (b *Bundle) Empty() bool {
	if b == nil {
		return true
	}
	known := func(t *TeamStats) bool { return t != nil && t.TeamID != 0 }
	return !known(b.Home) && !known(b.Away) && b.Match == nil &&
		len(b.Standings) == 0 && len(b.HeadToHead) == 0
}

// Format 渲染为 insights 阶段的数据文本
func (b *Bundle) Format() string {
	if b == nil {
		return ""
	}
	var sb strings.Builder
	section := func(title string, v any) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s:\n%s", title, data)
	}

	section("HOME TEAM", b.Home)
	section("AWAY TEAM", b.Away)
	if b.Match != nil {
		section("MATCH AND BETTING DATA", b.Match)
	}
	if len(b.Standings) > 0 {
		section("LEAGUE STANDINGS", b.Standings)
	}
	if len(b.HeadToHead) > 0 {
		section("HEAD TO HEAD", b.HeadToHead)
	}
	return sb.String()
}

// Bets 以投注类型为键整理投注项，同类型后者覆盖前者
func (b *Bundle) Bets() map[string]model.BetInfo {
	if b == nil || b.Match == nil || len(b.Match.Bets) == 0 {
		return nil
	}
	out := make(map[string]model.BetInfo, len(b.Match.Bets))
	for _, bet := range b.Match.Bets {
		out[bet.BetType] = model.BetInfo{
			BetType:       bet.BetType,
			Odds:          model.DecimalOdds(bet.Odds),
			Consensus:     bet.Consensus,
			ExpectedValue: bet.EV,
			Tier:          model.ParseTier(bet.Tier),
		}
	}
	return out
}
