package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
)

// TeamStats 球队统计，未找到球队时只有 TeamName 与 Note
type TeamStats struct {
	TeamID         int64   `db:"team_id" json:"team_id,omitempty"`
	TeamName       string  `db:"team_name" json:"team_name"`
	CommonName     string  `db:"common_name" json:"common_name,omitempty"`
	MatchesPlayed  int     `db:"matches_played" json:"matches_played"`
	Wins           int     `db:"wins" json:"wins"`
	Draws          int     `db:"draws" json:"draws"`
	Losses         int     `db:"losses" json:"losses"`
	GoalsScored    int     `db:"goals_scored" json:"goals_scored"`
	GoalsConceded  int     `db:"goals_conceded" json:"goals_conceded"`
	GoalDifference int     `db:"goal_difference" json:"goal_difference"`
	PointsPerGame  float64 `db:"points_per_game" json:"points_per_game"`
	Note           string  `db:"-" json:"note,omitempty"`
}

// Bet 单个投注项
type Bet struct {
	BetID     int64   `db:"bet_id" json:"bet_id"`
	BetType   string  `db:"bet_type" json:"bet_type"`
	Odds      float64 `db:"odds" json:"odds"`
	Consensus float64 `db:"consensus" json:"consensus"`
	EV        float64 `db:"ev" json:"ev"`
	Tier      string  `db:"tier" json:"tier"`
}

// Match 比赛记录
type Match struct {
	MatchID    int64  `db:"match_id" json:"match_id"`
	HomeTeamID int64  `db:"hometeam_id" json:"-"`
	AwayTeamID int64  `db:"awayteam_id" json:"-"`
	LeagueID   int64  `db:"league_id" json:"-"`
	HomeTeam   string `db:"home_team" json:"home_team"`
	AwayTeam   string `db:"away_team" json:"away_team"`
	League     string `db:"league_name" json:"league_name"`
	Date       string `db:"match_date" json:"match_date"`
	Bets       []Bet  `db:"-" json:"bets,omitempty"`
}

// Day 比赛日期，无法解析时为零值
func (m Match) Day() time.Time {
	s := m.Date
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Gateway 结构化比赛数据的只读访问。未命中返回 (nil, nil) 或空切片
type Gateway interface {
	TeamStats(ctx context.Context, name string) (*TeamStats, error)
	LeagueID(ctx context.Context, league string) (int64, error)
	Match(ctx context.Context, home, away string, closestTo time.Time) (*Match, error)
	LeagueStandings(ctx context.Context, league string) ([]TeamStats, error)
	HeadToHead(ctx context.Context, teamA, teamB string, limit int) ([]Match, error)
}

// Store 基于 sqlx 的 Gateway 实现，表结构 teams / leagues / matches / bets / bettypes
type Store struct {
	db  *sqlx.DB
	log *logrus.Entry
}

// NewStore 创建统计数据访问
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, log: logger.Component("stats")}
}

const teamColumns = `t.team_id, t.team_name, COALESCE(t.common_name, '') AS common_name,
	COALESCE(t.matches_played, 0) AS matches_played, COALESCE(t.wins, 0) AS wins,
	COALESCE(t.draws, 0) AS draws, COALESCE(t.losses, 0) AS losses,
	COALESCE(t.goals_scored, 0) AS goals_scored, COALESCE(t.goals_conceded, 0) AS goals_conceded,
	COALESCE(t.goal_difference, 0) AS goal_difference, COALESCE(t.points_per_game, 0) AS points_per_game`

const matchColumns = `m.match_id, m.hometeam_id, m.awayteam_id, COALESCE(m.league_id, 0) AS league_id,
	h.team_name AS home_team, a.team_name AS away_team, COALESCE(l.league, '') AS league_name,
	CAST(m.date AS TEXT) AS match_date
	FROM matches m
	JOIN teams h ON h.team_id = m.hometeam_id
	JOIN teams a ON a.team_id = m.awayteam_id
	LEFT JOIN leagues l ON l.league_id = m.league_id`

// teamID 先按 team_name 再按 common_name 查找，大小写不敏感
func (s *Store) teamID(ctx context.Context, name string) (int64, error) {
	for _, col := range []string{"team_name", "common_name"} {
		var id int64
		q := s.db.Rebind(fmt.Sprintf("SELECT team_id FROM teams WHERE LOWER(%s) = LOWER(?) ORDER BY team_id LIMIT 1", col))
		err := s.db.GetContext(ctx, &id, q, strings.TrimSpace(name))
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("lookup team %q: %w", name, err)
		}
	}
	return 0, nil
}

// TeamStats 实现 Gateway
func (s *Store) TeamStats(ctx context.Context, name string) (*TeamStats, error) {
	id, err := s.teamID(ctx, name)
	if err != nil || id == 0 {
		return nil, err
	}
	var ts TeamStats
	q := s.db.Rebind("SELECT " + teamColumns + " FROM teams t WHERE t.team_id = ?")
	if err := s.db.GetContext(ctx, &ts, q, id); err != nil {
		return nil, fmt.Errorf("team stats %q: %w", name, err)
	}
	return &ts, nil
}

// LeagueID 实现 Gateway，未找到返回 0
func (s *Store) LeagueID(ctx context.Context, league string) (int64, error) {
	var id int64
	q := s.db.Rebind("SELECT league_id FROM leagues WHERE LOWER(league) = LOWER(?) ORDER BY league_id LIMIT 1")
	err := s.db.GetContext(ctx, &id, q, strings.TrimSpace(league))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup league %q: %w", league, err)
	}
	return id, nil
}

// Match 实现 Gateway：主客队固定，取与 closestTo 相差天数最少的一场并附带投注项；
// closestTo 为零值时取最近一场
func (s *Store) Match(ctx context.Context, home, away string, closestTo time.Time) (*Match, error) {
	homeID, err := s.teamID(ctx, home)
	if err != nil {
		return nil, err
	}
	awayID, err := s.teamID(ctx, away)
	if err != nil {
		return nil, err
	}
	if homeID == 0 || awayID == 0 {
		s.log.Warnf("未找到球队: %s / %s", home, away)
		return nil, nil
	}

	var matches []Match
	q := s.db.Rebind("SELECT " + matchColumns + " WHERE m.hometeam_id = ? AND m.awayteam_id = ? ORDER BY m.date DESC")
	if err := s.db.SelectContext(ctx, &matches, q, homeID, awayID); err != nil {
		return nil, fmt.Errorf("match %s vs %s: %w", home, away, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	best := matches[0]
	if !closestTo.IsZero() {
		sort.SliceStable(matches, func(i, j int) bool {
			return absDays(matches[i].Day(), closestTo) < absDays(matches[j].Day(), closestTo)
		})
		best = matches[0]
	}

	bets, err := s.bets(ctx, best.MatchID)
	if err != nil {
		return nil, err
	}
	best.Bets = bets
	return &best, nil
}

func (s *Store) bets(ctx context.Context, matchID int64) ([]Bet, error) {
	var bets []Bet
	q := s.db.Rebind(`SELECT b.bet_id, COALESCE(bt.bet_type, 'Unknown') AS bet_type,
		COALESCE(b.odds, 0) AS odds, COALESCE(b.consensus, 0) AS consensus,
		COALESCE(b.ev, 0) AS ev, COALESCE(b.tier, '') AS tier
		FROM bets b LEFT JOIN bettypes bt ON bt.betype_id = b.betype_id
		WHERE b.match_id = ? ORDER BY b.bet_id`)
	if err := s.db.SelectContext(ctx, &bets, q, matchID); err != nil {
		return nil, fmt.Errorf("bets of match %d: %w", matchID, err)
	}
	return bets, nil
}

// LeagueStandings 实现 Gateway：联赛内出场过的球队，按场均积分、净胜球降序
func (s *Store) LeagueStandings(ctx context.Context, league string) ([]TeamStats, error) {
	leagueID, err := s.LeagueID(ctx, league)
	if err != nil || leagueID == 0 {
		return nil, err
	}
	var rows []TeamStats
	q := s.db.Rebind("SELECT " + teamColumns + ` FROM teams t WHERE t.team_id IN (
		SELECT hometeam_id FROM matches WHERE league_id = ?
		UNION SELECT awayteam_id FROM matches WHERE league_id = ?)
		ORDER BY points_per_game DESC, goal_difference DESC`)
	if err := s.db.SelectContext(ctx, &rows, q, leagueID, leagueID); err != nil {
		return nil, fmt.Errorf("standings of %q: %w", league, err)
	}
	return rows, nil
}

// HeadToHead 实现 Gateway：两队交锋记录，不分主客，按日期倒序
func (s *Store) HeadToHead(ctx context.Context, teamA, teamB string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	aID, err := s.teamID(ctx, teamA)
	if err != nil {
		return nil, err
	}
	bID, err := s.teamID(ctx, teamB)
	if err != nil {
		return nil, err
	}
	if aID == 0 || bID == 0 {
		return nil, nil
	}

	var matches []Match
	q := s.db.Rebind("SELECT " + matchColumns + ` WHERE (m.hometeam_id = ? AND m.awayteam_id = ?)
		OR (m.hometeam_id = ? AND m.awayteam_id = ?) ORDER BY m.date DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &matches, q, aID, bID, bID, aID, limit); err != nil {
		return nil, fmt.Errorf("head to head %s vs %s: %w", teamA, teamB, err)
	}
	return matches, nil
}

func absDays(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}
