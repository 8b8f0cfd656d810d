package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

func newTestStorage(t *testing.T, opts ...Option) *Storage {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, config.DBConfig{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(ctx, db, opts...)
	require.NoError(t, err)
	return s
}

func mustQuery(t *testing.T, home, away, league, date string) model.MatchQuery {
	t.Helper()
	q, err := model.ParseMatchQuery(home, away, league, date)
	require.NoError(t, err)
	return q
}

func TestStorage_StoreAndLoad(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	q := mustQuery(t, "Arsenal", "Chelsea", "Premier League", "2024-05-01")

	found, _, err := s.Exists(ctx, q)
	require.NoError(t, err)
	assert.False(t, found)

	insights := "Arsenal unbeaten at home."
	combined := "Combined view."
	res := &model.AnalysisResult{
		RawNews:          "Title: x",
		SynthesizedNews:  "syn",
		InitialAnalysis:  "init",
		EnhancedAnalysis: "enh",
		DBInsights:       &insights,
		CombinedAnalysis: &combined,
		BettingInsights: map[string]model.BetInfo{
			"Home Win": {BetType: "Home Win", Odds: model.DecimalOdds(1.85), Tier: model.TierA},
		},
	}
	id, err := s.Store(ctx, q, res, Meta{HomeTeamID: 10, LeagueID: 1})
	require.NoError(t, err)
	assert.Positive(t, id)

	// 队名大小写与多余空格不影响命中
	found, got, err := s.Exists(ctx, mustQuery(t, " arsenal ", "CHELSEA", "", "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, res, loaded)

	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal vs Chelsea Match Analysis and Prediction - 01 May 2024", rec.Title)
	assert.Equal(t, "arsenal-vs-chelsea-2024-05-01-analysis", rec.Slug)
	assert.Equal(t, StatusDraft, rec.Status)
	rq, err := rec.Query()
	require.NoError(t, err)
	assert.Equal(t, q, rq)
}

func TestStorage_ExistsReturnsLatestAndIgnoresOtherDates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	q := mustQuery(t, "Arsenal", "Chelsea", "Premier League", "2024-05-01")
	res := &model.AnalysisResult{EnhancedAnalysis: "enh"}

	first, err := s.Store(ctx, q, res, Meta{})
	require.NoError(t, err)
	second, err := s.Store(ctx, q, res, Meta{})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	_, id, err := s.Exists(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, second, id)

	found, _, err := s.Exists(ctx, mustQuery(t, "Arsenal", "Chelsea", "Premier League", "2024-05-02"))
	require.NoError(t, err)
	assert.False(t, found)

	// 主客队互换是另一场比赛
	found, _, err = s.Exists(ctx, mustQuery(t, "Chelsea", "Arsenal", "Premier League", "2024-05-01"))
	require.NoError(t, err)
	assert.False(t, found)

	list, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
}

func TestStorage_StrictLeague(t *testing.T) {
	s := newTestStorage(t, WithStrictLeague(true))
	ctx := context.Background()
	q := mustQuery(t, "Arsenal", "Chelsea", "Premier League", "2024-05-01")
	_, err := s.Store(ctx, q, &model.AnalysisResult{EnhancedAnalysis: "enh"}, Meta{})
	require.NoError(t, err)

	found, _, err := s.Exists(ctx, mustQuery(t, "Arsenal", "Chelsea", "FA Cup", "2024-05-01"))
	require.NoError(t, err)
	assert.False(t, found)

	found, _, err = s.Exists(ctx, mustQuery(t, "Arsenal", "Chelsea", "premier league", "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStorage_LoadFallsBackToMarkup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	q := mustQuery(t, "Arsenal", "Chelsea", "Premier League", "2024-05-01")

	text := "Arsenal press high.\n\n## Betting\n\n- **Match Result:** Arsenal win at **1.85**."
	id, err := s.Store(ctx, q, &model.AnalysisResult{EnhancedAnalysis: text}, Meta{})
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `UPDATE analyses SET raw_content = NULL WHERE id = ?`, id)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, text, loaded.EnhancedAnalysis)
	assert.Equal(t, loaded.EnhancedAnalysis, loaded.Canonical())
	require.Contains(t, loaded.BettingInsights, "Match Result")
	assert.InDelta(t, 1.85, loaded.BettingInsights["Match Result"].Odds.Decimal, 1e-9)

	// 内容既无 raw_content 也无法还原时原样返回
	_, err = s.db.ExecContext(ctx, `UPDATE analyses SET raw_content = 'not json', content = '<div></div>' WHERE id = ?`, id)
	require.NoError(t, err)
	loaded, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "<div></div>", loaded.EnhancedAnalysis)
}

func TestStorage_LoadUnknown(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Load(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "abc", Sanitize("a\x00b\xffc"))
}
