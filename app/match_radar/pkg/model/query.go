package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidQuery 比赛查询参数不合法
var ErrInvalidQuery = errors.New("invalid match query")

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// MatchQuery 一次分析请求的比赛标识，构造后不可变
type MatchQuery struct {
	HomeTeam string
	AwayTeam string
	League   string // 可为空
	Date     time.Time
}

// NewMatchQuery 校验并构造比赛查询，日期截断到 UTC 自然日
func NewMatchQuery(home, away, league string, date time.Time) (MatchQuery, error) {
	home = collapseSpaces(home)
	away = collapseSpaces(away)
	league = collapseSpaces(league)

	if home == "" || away == "" {
		return MatchQuery{}, fmt.Errorf("%w: both teams are required", ErrInvalidQuery)
	}
	if NormalizeTeam(home) == NormalizeTeam(away) {
		return MatchQuery{}, fmt.Errorf("%w: home and away team are the same", ErrInvalidQuery)
	}
	if date.IsZero() {
		return MatchQuery{}, fmt.Errorf("%w: match date is required", ErrInvalidQuery)
	}

	y, m, d := date.Date()
	return MatchQuery{
		HomeTeam: home,
		AwayTeam: away,
		League:   league,
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}, nil
}

// ParseMatchQuery 从 YYYY-MM-DD 格式的日期字符串构造比赛查询
func ParseMatchQuery(home, away, league, date string) (MatchQuery, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(date))
	if err != nil {
		return MatchQuery{}, fmt.Errorf("%w: bad date %q", ErrInvalidQuery, date)
	}
	return NewMatchQuery(home, away, league, d)
}

// NormalizeTeam 队名归一化：小写并压缩空白
func NormalizeTeam(name string) string {
	return strings.ToLower(collapseSpaces(name))
}

// DateString 比赛日期 YYYY-MM-DD
func (q MatchQuery) DateString() string {
	return q.Date.Format(time.DateOnly)
}

// Title 形如 "Arsenal vs Chelsea"
func (q MatchQuery) Title() string {
	return q.HomeTeam + " vs " + q.AwayTeam
}

// Topic 用于检索和提示词的比赛描述
func (q MatchQuery) Topic() string {
	parts := []string{q.Title()}
	if q.League != "" {
		parts = append(parts, q.League)
	}
	parts = append(parts, q.Date.Format("02 January 2006"))
	return strings.Join(parts, " ")
}

// Key 缓存键，不含联赛
func (q MatchQuery) Key() string {
	return NormalizeTeam(q.HomeTeam) + "|" + NormalizeTeam(q.AwayTeam) + "|" + q.DateString()
}

// StrictKey 含联赛的缓存键
func (q MatchQuery) StrictKey() string {
	return q.Key() + "|" + NormalizeTeam(q.League)
}

// Slug 形如 "arsenal-vs-chelsea-2024-05-01-analysis"
func (q MatchQuery) Slug() string {
	s := strings.ToLower(q.Title())
	s = slugInvalid.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return fmt.Sprintf("%s-%s-analysis", s, q.DateString())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
