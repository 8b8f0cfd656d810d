package stats

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

const fixture = `
CREATE TABLE leagues (league_id INTEGER PRIMARY KEY, league TEXT NOT NULL);
CREATE TABLE teams (
	team_id INTEGER PRIMARY KEY, team_name TEXT NOT NULL, common_name TEXT,
	matches_played INTEGER, wins INTEGER, draws INTEGER, losses INTEGER,
	goals_scored INTEGER, goals_conceded INTEGER, goal_difference INTEGER, points_per_game REAL
);
CREATE TABLE matches (
	match_id INTEGER PRIMARY KEY, hometeam_id INTEGER, awayteam_id INTEGER, league_id INTEGER, date TEXT
);
CREATE TABLE bettypes (betype_id INTEGER PRIMARY KEY, bet_type TEXT);
CREATE TABLE bets (
	bet_id INTEGER PRIMARY KEY, match_id INTEGER, betype_id INTEGER,
	odds REAL, consensus REAL, ev REAL, tier TEXT
);

INSERT INTO leagues VALUES (1, 'Premier League');
INSERT INTO teams VALUES (10, 'Arsenal FC', 'Arsenal', 30, 20, 5, 5, 60, 25, 35, 2.17);
INSERT INTO teams VALUES (20, 'Chelsea FC', 'Chelsea', 30, 15, 7, 8, 50, 35, 15, 1.73);
INSERT INTO teams VALUES (30, 'Everton FC', NULL, 30, 8, 8, 14, 30, 45, -15, 1.07);
INSERT INTO matches VALUES (100, 10, 20, 1, '2023-10-21');
INSERT INTO matches VALUES (101, 10, 20, 1, '2024-05-01');
INSERT INTO matches VALUES (102, 20, 10, 1, '2024-01-15');
INSERT INTO matches VALUES (103, 30, 10, 1, '2024-02-01');
INSERT INTO bettypes VALUES (1, 'Home Win');
INSERT INTO bettypes VALUES (2, 'Over 2.5');
INSERT INTO bets VALUES (1000, 101, 1, 1.85, 62.5, 4.1, 'A');
INSERT INTO bets VALUES (1001, 101, 2, 1.70, 55.0, -1.2, 'x');
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(fixture)
	require.NoError(t, err)
	return NewStore(db)
}

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestStore_TeamStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts, err := s.TeamStats(ctx, "arsenal fc")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, int64(10), ts.TeamID)
	assert.Equal(t, 35, ts.GoalDifference)

	// common_name 兜底
	ts, err = s.TeamStats(ctx, "Chelsea")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, "Chelsea FC", ts.TeamName)

	ts, err = s.TeamStats(ctx, "Nowhere United")
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestStore_MatchClosestToDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Match(ctx, "Arsenal", "Chelsea", day("2023-11-01"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(100), m.MatchID)
	assert.Empty(t, m.Bets)

	m, err = s.Match(ctx, "Arsenal", "Chelsea", day("2024-04-28"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(101), m.MatchID)
	assert.Equal(t, "Premier League", m.League)
	require.Len(t, m.Bets, 2)
	assert.Equal(t, "Home Win", m.Bets[0].BetType)

	// 无日期时取最近一场
	m, err = s.Match(ctx, "Arsenal", "Chelsea", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(101), m.MatchID)

	m, err = s.Match(ctx, "Arsenal", "Everton FC", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestStore_StandingsAndHeadToHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows, err := s.LeagueStandings(ctx, "premier league")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Arsenal FC", rows[0].TeamName)
	assert.Equal(t, "Everton FC", rows[2].TeamName)

	rows, err = s.LeagueStandings(ctx, "La Liga")
	require.NoError(t, err)
	assert.Empty(t, rows)

	h2h, err := s.HeadToHead(ctx, "Chelsea", "Arsenal", 10)
	require.NoError(t, err)
	require.Len(t, h2h, 3)
	assert.Equal(t, int64(101), h2h[0].MatchID)

	h2h, err = s.HeadToHead(ctx, "Chelsea", "Arsenal", 1)
	require.NoError(t, err)
	assert.Len(t, h2h, 1)
}

func TestCollect(t *testing.T) {
	s := newTestStore(t)
	q, err := model.ParseMatchQuery("Arsenal", "Chelsea", "Premier League", "2024-05-01")
	require.NoError(t, err)

	b, err := Collect(context.Background(), s, q)
	require.NoError(t, err)
	assert.False(t, b.Empty())
	assert.Equal(t, int64(1), b.LeagueID)
	assert.Equal(t, int64(101), b.Match.MatchID)

	bets := b.Bets()
	require.Len(t, bets, 2)
	assert.Equal(t, model.TierA, bets["Home Win"].Tier)
	assert.Equal(t, model.TierUnknown, bets["Over 2.5"].Tier)
	assert.InDelta(t, 1.85, bets["Home Win"].Odds.Decimal, 1e-9)

	text := b.Format()
	assert.True(t, strings.HasPrefix(text, "HOME TEAM:\n"))
	assert.Contains(t, text, "LEAGUE STANDINGS:")
	assert.Contains(t, text, "HEAD TO HEAD:")
}

type failingGateway struct{}

func (failingGateway) TeamStats(context.Context, string) (*TeamStats, error) {
	return nil, errors.New("connection refused")
}
func (failingGateway) LeagueID(context.Context, string) (int64, error) { return 0, nil }
func (failingGateway) Match(context.Context, string, string, time.Time) (*Match, error) {
	return nil, nil
}
func (failingGateway) LeagueStandings(context.Context, string) ([]TeamStats, error) {
	return nil, nil
}
func (failingGateway) HeadToHead(context.Context, string, string, int) ([]Match, error) {
	return nil, nil
}

func TestCollect_FallsBackOnMisses(t *testing.T) {
	q, err := model.ParseMatchQuery("Alpha", "Beta", "", "2024-05-01")
	require.NoError(t, err)

	b, err := Collect(context.Background(), failingGateway{}, q)
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Equal(t, TeamStats{TeamName: "Alpha", Note: LimitedNote}, *b.Home)
	assert.Equal(t, LimitedNote, b.Away.Note)
	assert.Nil(t, b.Bets())
	assert.Contains(t, b.Format(), `"note": "Limited statistics available"`)
}
