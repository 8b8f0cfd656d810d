package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/chat"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/events"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/guard"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/pipeline"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/stats"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

// mockAnalysisRepo 内存版分析缓存
type mockAnalysisRepo struct {
	mu      sync.Mutex
	records map[int64]*storage.Record
	keys    map[int64]string
	metas   map[int64]storage.Meta
	nextID  int64
}

func newMockAnalysisRepo() *mockAnalysisRepo {
	return &mockAnalysisRepo{
		records: make(map[int64]*storage.Record),
		keys:    make(map[int64]string),
		metas:   make(map[int64]storage.Meta),
	}
}

func (m *mockAnalysisRepo) Exists(_ context.Context, q model.MatchQuery) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest int64
	for id, k := range m.keys {
		if k == q.Key() && id > latest {
			latest = id
		}
	}
	return latest != 0, latest, nil
}

func (m *mockAnalysisRepo) Load(ctx context.Context, id int64) (*model.AnalysisResult, error) {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Result, nil
}

func (m *mockAnalysisRepo) Get(_ context.Context, id int64) (*storage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (m *mockAnalysisRepo) Store(_ context.Context, q model.MatchQuery, res *model.AnalysisResult, meta storage.Meta) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.records[id] = &storage.Record{
		Summary: storage.Summary{ID: id, HomeTeam: q.HomeTeam, AwayTeam: q.AwayTeam, League: q.League, MatchDate: q.DateString()},
		Result:  res,
	}
	m.keys[id] = q.Key()
	m.metas[id] = meta
	return id, nil
}

func (m *mockAnalysisRepo) List(_ context.Context, limit, offset int) ([]storage.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Summary
	for id := m.nextID; id > 0; id-- {
		out = append(out, m.records[id].Summary)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockAnalysisRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockAnalyzer 记录调用并按配置返回结果
type mockAnalyzer struct {
	runs      int32
	insights  int32
	delay     time.Duration
	failStage pipeline.Stage
	insErr    error
	lastOpts  pipeline.RunOptions
	mu        sync.Mutex
}

func (a *mockAnalyzer) Run(_ context.Context, _ model.MatchQuery, opts pipeline.RunOptions) (*model.AnalysisResult, error) {
	atomic.AddInt32(&a.runs, 1)
	time.Sleep(a.delay)
	a.mu.Lock()
	a.lastOpts = opts
	a.mu.Unlock()

	res := &model.AnalysisResult{RawNews: "news", SynthesizedNews: "synth", InitialAnalysis: "initial"}
	if a.failStage == pipeline.StageElaborate {
		return res, &pipeline.StageError{Stage: pipeline.StageElaborate, Err: errors.New("timeout")}
	}
	res.EnhancedAnalysis = "enhanced"
	if opts.DBInsights != nil {
		res.DBInsights = model.Text(*opts.DBInsights)
		res.CombinedAnalysis = model.Text("combined")
	}
	return res, nil
}

func (a *mockAnalyzer) Insights(context.Context, model.MatchQuery, *stats.Bundle) (string, error) {
	atomic.AddInt32(&a.insights, 1)
	if a.insErr != nil {
		return "", a.insErr
	}
	return "Arsenal unbeaten at home.", nil
}

// mockGateway 只认识 Arsenal 与 Chelsea
type mockGateway struct{ empty bool }

func (g mockGateway) TeamStats(_ context.Context, name string) (*stats.TeamStats, error) {
	if g.empty {
		return nil, nil
	}
	ids := map[string]int64{"Arsenal": 1, "Chelsea": 2}
	if id, ok := ids[name]; ok {
		return &stats.TeamStats{TeamID: id, TeamName: name, MatchesPlayed: 30}, nil
	}
	return nil, nil
}

func (g mockGateway) LeagueID(context.Context, string) (int64, error) {
	if g.empty {
		return 0, nil
	}
	return 39, nil
}

func (g mockGateway) Match(context.Context, string, string, time.Time) (*stats.Match, error) {
	if g.empty {
		return nil, nil
	}
	return &stats.Match{MatchID: 100, LeagueID: 39, HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		Bets: []stats.Bet{{BetType: "Match Result", Odds: 1.85, Tier: "A"}}}, nil
}

func (g mockGateway) LeagueStandings(context.Context, string) ([]stats.TeamStats, error) {
	return nil, nil
}

func (g mockGateway) HeadToHead(context.Context, string, string, int) ([]stats.Match, error) {
	return nil, nil
}

func arsenalChelsea(t *testing.T) model.MatchQuery {
	t.Helper()
	q, err := model.ParseMatchQuery("Arsenal", "Chelsea", "Premier League", "2024-05-01")
	require.NoError(t, err)
	return q
}

func newAnalysisUseCase(r *mockAnalysisRepo, a *mockAnalyzer, gw stats.Gateway, cfg config.AnalysisConfig) *AnalysisUseCase {
	return NewAnalysisUseCase(r, a, gw, guard.NewLocal(), events.Nop{}, nil,
		&config.Config{Analysis: cfg}, log.DefaultLogger)
}

func boolPtr(b bool) *bool { return &b }

func TestAnalyze_ComputesThenCaches(t *testing.T) {
	r, a := newMockAnalysisRepo(), &mockAnalyzer{}
	uc := newAnalysisUseCase(r, a, nil, config.AnalysisConfig{})
	ctx := context.Background()
	q := arsenalChelsea(t)

	first, err := uc.Analyze(ctx, AnalyzeRequest{Query: q})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "enhanced", first.Result.Canonical())
	assert.Nil(t, a.lastOpts.DBInsights)

	second, err := uc.Analyze(ctx, AnalyzeRequest{Query: q})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.runs))

	forced, err := uc.Analyze(ctx, AnalyzeRequest{Query: q, Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.NotEqual(t, first.ID, forced.ID)
	assert.Equal(t, 2, r.count())
}

func TestAnalyze_ConcurrentRequestsRunOnce(t *testing.T) {
	r, a := newMockAnalysisRepo(), &mockAnalyzer{delay: 20 * time.Millisecond}
	uc := newAnalysisUseCase(r, a, nil, config.AnalysisConfig{})
	q := arsenalChelsea(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: q})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&a.runs))
	assert.Equal(t, 1, r.count())
}

func TestAnalyze_DegradedIsNotStored(t *testing.T) {
	r, a := newMockAnalysisRepo(), &mockAnalyzer{failStage: pipeline.StageElaborate}
	uc := newAnalysisUseCase(r, a, nil, config.AnalysisConfig{})

	got, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: arsenalChelsea(t)})
	require.NoError(t, err)
	assert.True(t, got.Degraded())
	assert.Equal(t, "elaborate", got.FailedStage)
	assert.Equal(t, "initial", got.Result.Canonical())
	assert.Zero(t, got.ID)
	assert.Zero(t, r.count())
}

func TestAnalyze_WithStats(t *testing.T) {
	r, a := newMockAnalysisRepo(), &mockAnalyzer{}
	uc := newAnalysisUseCase(r, a, mockGateway{}, config.AnalysisConfig{})

	got, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: arsenalChelsea(t)})
	require.NoError(t, err)
	require.NotNil(t, a.lastOpts.DBInsights)
	assert.Equal(t, "Arsenal unbeaten at home.", *a.lastOpts.DBInsights)
	assert.Equal(t, "combined", got.Result.Canonical())
	assert.Equal(t, model.TierA, got.Result.BettingInsights["Match Result"].Tier)

	meta := r.metas[got.ID]
	assert.Equal(t, storage.Meta{HomeTeamID: 1, AwayTeamID: 2, LeagueID: 39, MatchID: 100}, meta)
}

func TestAnalyze_InsightsFailureFallsBackToNews(t *testing.T) {
	a := &mockAnalyzer{insErr: &pipeline.StageError{Stage: pipeline.StageInsights, Err: errors.New("boom")}}
	uc := newAnalysisUseCase(newMockAnalysisRepo(), a, mockGateway{}, config.AnalysisConfig{})

	got, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: arsenalChelsea(t)})
	require.NoError(t, err)
	assert.False(t, got.Degraded())
	assert.Nil(t, a.lastOpts.DBInsights)
	assert.Equal(t, "enhanced", got.Result.Canonical())
}

func TestAnalyze_StatsOnly(t *testing.T) {
	r, a := newMockAnalysisRepo(), &mockAnalyzer{}
	uc := newAnalysisUseCase(r, a, mockGateway{}, config.AnalysisConfig{})
	q := arsenalChelsea(t)

	got, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: q, UseNews: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Arsenal unbeaten at home.", got.Result.Canonical())
	assert.Zero(t, atomic.LoadInt32(&a.runs))
	assert.Equal(t, 1, r.count())

	empty := newAnalysisUseCase(newMockAnalysisRepo(), &mockAnalyzer{}, mockGateway{empty: true}, config.AnalysisConfig{})
	_, err = empty.Analyze(context.Background(), AnalyzeRequest{Query: q, UseNews: boolPtr(false)})
	assert.ErrorIs(t, err, ErrNoStatistics)
}

func TestAnalyze_StatsOnlyInsightsFailureIsDegraded(t *testing.T) {
	a := &mockAnalyzer{insErr: &pipeline.StageError{Stage: pipeline.StageInsights, Err: errors.New("boom")}}
	r := newMockAnalysisRepo()
	uc := newAnalysisUseCase(r, a, mockGateway{}, config.AnalysisConfig{DisableNews: true})

	got, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: arsenalChelsea(t)})
	require.NoError(t, err)
	assert.Equal(t, "insights", got.FailedStage)
	assert.Zero(t, r.count())
}

func TestAnalyze_NothingToRun(t *testing.T) {
	uc := newAnalysisUseCase(newMockAnalysisRepo(), &mockAnalyzer{}, nil, config.AnalysisConfig{})
	_, err := uc.Analyze(context.Background(), AnalyzeRequest{Query: arsenalChelsea(t), UseNews: boolPtr(false)})
	assert.ErrorIs(t, err, ErrNothingToRun)
}

func TestAnalysisUseCase_List(t *testing.T) {
	r := newMockAnalysisRepo()
	uc := newAnalysisUseCase(r, &mockAnalyzer{}, nil, config.AnalysisConfig{})
	ctx := context.Background()
	for _, d := range []string{"2024-05-01", "2024-05-08", "2024-05-15"} {
		q, err := model.ParseMatchQuery("Arsenal", "Chelsea", "Premier League", d)
		require.NoError(t, err)
		_, err = uc.Analyze(ctx, AnalyzeRequest{Query: q})
		require.NoError(t, err)
	}

	page, err := uc.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2024-05-01", page[0].MatchDate)
}

type answerLLM struct{ calls int32 }

func (l *answerLLM) Complete(context.Context, []*schema.Message) (string, error) {
	atomic.AddInt32(&l.calls, 1)
	return "Arsenal by one.", nil
}

func newChatUseCase(t *testing.T) (*ChatUseCase, *mockAnalysisRepo) {
	t.Helper()
	r := newMockAnalysisRepo()
	analysis := newAnalysisUseCase(r, &mockAnalyzer{}, nil, config.AnalysisConfig{})
	return NewChatUseCase(chat.NewSessions(), chat.NewResponder(&answerLLM{}, nil, nil), analysis, nil, log.DefaultLogger), r
}

func TestChatUseCase_Flow(t *testing.T) {
	uc, _ := newChatUseCase(t)
	ctx := context.Background()

	s := uc.CreateSession("alice")
	_, err := uc.Ask(ctx, s.ID, "alice", "Who wins?")
	assert.ErrorIs(t, err, chat.ErrNoAnalysis)

	_, err = uc.Analyze(ctx, s.ID, "alice", AnalyzeRequest{Query: arsenalChelsea(t)})
	require.NoError(t, err)

	answer, err := uc.Ask(ctx, s.ID, "alice", "Who wins?")
	require.NoError(t, err)
	assert.Equal(t, "Arsenal by one.", answer)

	hist, state, err := uc.History(s.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, chat.StateReady, state)
	assert.Len(t, hist, 2)

	require.NoError(t, uc.Reset(s.ID, "alice"))
	hist, state, err = uc.History(s.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, chat.StateNoAnalysis, state)
	assert.Empty(t, hist)

	_, err = uc.Ask(ctx, s.ID, "bob", "Who wins?")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestChatUseCase_AnonymousAndStored(t *testing.T) {
	uc, r := newChatUseCase(t)
	ctx := context.Background()
	q := arsenalChelsea(t)
	id, err := r.Store(ctx, q, &model.AnalysisResult{EnhancedAnalysis: "stored"}, storage.Meta{})
	require.NoError(t, err)

	s := uc.CreateSession("")
	assert.Equal(t, "default_user", s.UserID)

	a, err := uc.AttachStored(ctx, s.ID, "", id)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal vs Chelsea", a.Query.Title())

	_, err = uc.AttachStored(ctx, s.ID, "", 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mems, err := uc.Memories(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, mems)
	assert.False(t, uc.MemoryEnabled())
}

func TestChatUseCase_DegradedWithoutTextIsNotAttached(t *testing.T) {
	r := newMockAnalysisRepo()
	analysis := NewAnalysisUseCase(r, &emptyAnalyzer{}, nil, guard.NewLocal(), events.Nop{}, nil,
		&config.Config{}, log.DefaultLogger)
	uc := NewChatUseCase(chat.NewSessions(), chat.NewResponder(&answerLLM{}, nil, nil), analysis, nil, log.DefaultLogger)

	s := uc.CreateSession("alice")
	a, err := uc.Analyze(context.Background(), s.ID, "alice", AnalyzeRequest{Query: arsenalChelsea(t)})
	assert.ErrorIs(t, err, ErrEmptyAnalysis)
	assert.Equal(t, "search", a.FailedStage)
	assert.Equal(t, chat.StateNoAnalysis, s.State())
}

type emptyAnalyzer struct{}

func (emptyAnalyzer) Run(context.Context, model.MatchQuery, pipeline.RunOptions) (*model.AnalysisResult, error) {
	return &model.AnalysisResult{}, &pipeline.StageError{Stage: pipeline.StageSearch, Err: errors.New("dns")}
}

func (emptyAnalyzer) Insights(context.Context, model.MatchQuery, *stats.Bundle) (string, error) {
	return "", nil
}
