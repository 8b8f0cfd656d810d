package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/match_radar/app/analyst/internal/repo"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/events"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/guard"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/pipeline"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/stats"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

var (
	// ErrNothingToRun 新闻与统计都未启用
	ErrNothingToRun = errors.New("news and stats are both disabled")
	// ErrNoStatistics 仅统计模式下没有任何比赛数据
	ErrNoStatistics = errors.New("no statistics available for match")
)

const (
	OutcomeCached   = "cached"
	OutcomeComputed = "computed"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Analyzer 分析流水线
type Analyzer interface {
	Run(ctx context.Context, q model.MatchQuery, opts pipeline.RunOptions) (*model.AnalysisResult, error)
	Insights(ctx context.Context, q model.MatchQuery, bundle *stats.Bundle) (string, error)
}

// AnalyzeRequest 一次分析请求，UseNews/UseStats 为空时取配置默认值
type AnalyzeRequest struct {
	Query    model.MatchQuery
	UseNews  *bool
	UseStats *bool
	// Force 跳过缓存重新计算
	Force bool
}

// Analysis 分析结果。FailedStage 非空表示流水线中途失败，Result 为部分结果且未落库
type Analysis struct {
	ID          int64
	Query       model.MatchQuery
	Result      *model.AnalysisResult
	Cached      bool
	FailedStage string
}

// Degraded 是否为部分结果
func (a *Analysis) Degraded() bool {
	return a.FailedStage != ""
}

// AnalysisUseCase 缓存查找、流水线执行与落库
type AnalysisUseCase struct {
	repo     repo.AnalysisRepo
	analyzer Analyzer
	stats    stats.Gateway
	locker   guard.Locker
	events   events.Publisher
	metrics  *metrics.Metrics
	cfg      config.AnalysisConfig
	log      *log.Helper
}

// NewAnalysisUseCase 创建分析业务逻辑实例，gw 为 nil 时不使用统计数据
func NewAnalysisUseCase(r repo.AnalysisRepo, a Analyzer, gw stats.Gateway, l guard.Locker,
	p events.Publisher, m *metrics.Metrics, c *config.Config, logger log.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		repo:     r,
		analyzer: a,
		stats:    gw,
		locker:   l,
		events:   p,
		metrics:  m,
		cfg:      c.Analysis,
		log:      log.NewHelper(logger),
	}
}

func (uc *AnalysisUseCase) modes(req AnalyzeRequest) (useNews, useStats bool) {
	useNews, useStats = !uc.cfg.DisableNews, !uc.cfg.DisableStats
	if req.UseNews != nil {
		useNews = *req.UseNews
	}
	if req.UseStats != nil {
		useStats = *req.UseStats
	}
	return useNews, useStats && uc.stats != nil
}

func (uc *AnalysisUseCase) lockKey(q model.MatchQuery) string {
	if uc.cfg.StrictLeague {
		return q.StrictKey()
	}
	return q.Key()
}

// Analyze 命中缓存直接返回；否则在比赛级锁内再次确认缓存后执行流水线并保存
func (uc *AnalysisUseCase) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	q := req.Query
	useNews, useStats := uc.modes(req)
	if !useNews && !useStats {
		return nil, ErrNothingToRun
	}

	if !req.Force {
		if a, err := uc.cached(ctx, q); a != nil || err != nil {
			return a, err
		}
	}

	unlock, err := uc.locker.Lock(ctx, uc.lockKey(q))
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", q.Key(), err)
	}
	defer unlock()

	// 等锁期间可能已有其它请求完成同一场比赛
	if !req.Force {
		if a, err := uc.cached(ctx, q); a != nil || err != nil {
			return a, err
		}
	}

	a, meta, err := uc.compute(ctx, q, useNews, useStats)
	if err != nil {
		uc.metrics.Analysis(OutcomeFailed)
		return nil, err
	}
	if a.Degraded() {
		uc.metrics.Analysis(OutcomeDegraded)
		uc.log.Warnf("分析在阶段 [%s] 失败，返回部分结果 [%s]", a.FailedStage, q.Topic())
		return a, nil
	}

	id, err := uc.repo.Store(ctx, q, a.Result, meta)
	if err != nil {
		uc.metrics.Analysis(OutcomeFailed)
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	a.ID = id
	uc.metrics.Analysis(OutcomeComputed)
	if id == 0 {
		// 缓存禁用，没有可引用的记录
		return a, nil
	}
	uc.log.Infof("分析已保存 [%s] id=%d", q.Topic(), id)

	if err := uc.events.Publish(ctx, events.NewAnalysisEvent(q, id, OutcomeComputed, "")); err != nil {
		uc.log.Warnf("发布分析事件失败: %v", err)
	}
	return a, nil
}

func (uc *AnalysisUseCase) cached(ctx context.Context, q model.MatchQuery) (*Analysis, error) {
	ok, id, err := uc.repo.Exists(ctx, q)
	if err != nil {
		return nil, err
	}
	uc.metrics.CacheLookup(ok)
	if !ok {
		return nil, nil
	}
	res, err := uc.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.metrics.Analysis(OutcomeCached)
	uc.log.Infof("命中已有分析 [%s] id=%d", q.Topic(), id)
	return &Analysis{ID: id, Query: q, Result: res, Cached: true}, nil
}

func (uc *AnalysisUseCase) compute(ctx context.Context, q model.MatchQuery, useNews, useStats bool) (*Analysis, storage.Meta, error) {
	var (
		meta     storage.Meta
		insights *string
		bets     map[string]model.BetInfo
	)
	a := &Analysis{Query: q}

	if useStats {
		bundle, err := stats.Collect(ctx, uc.stats, q)
		if err != nil {
			return nil, meta, err
		}
		meta = metaOf(bundle)
		bets = bundle.Bets()

		switch {
		case !bundle.Empty():
			text, err := uc.analyzer.Insights(ctx, q, bundle)
			if err == nil {
				insights = &text
				break
			}
			if !useNews {
				a.Result = &model.AnalysisResult{BettingInsights: bets}
				a.FailedStage = string(pipeline.FailedStage(err))
				return a, meta, nil
			}
			uc.log.Warnf("统计洞察生成失败，仅使用新闻分析: %v", err)
		case !useNews:
			return nil, meta, ErrNoStatistics
		default:
			uc.log.Infof("没有找到比赛统计数据 [%s]", q.Title())
		}
	}

	if !useNews {
		a.Result = &model.AnalysisResult{DBInsights: insights, BettingInsights: bets}
		return a, meta, nil
	}

	res, err := uc.analyzer.Run(ctx, q, pipeline.RunOptions{
		DBInsights: insights,
		Progress: func(stage pipeline.Stage, status string, percent int) {
			uc.log.Debugf("[%s] %d%% %s %s", q.Title(), percent, stage, status)
		},
	})
	if res != nil && len(bets) > 0 {
		res.BettingInsights = bets
	}
	a.Result = res
	if err != nil {
		stage := pipeline.FailedStage(err)
		if stage == "" {
			return nil, meta, err
		}
		a.FailedStage = string(stage)
	}
	return a, meta, nil
}

func metaOf(b *stats.Bundle) storage.Meta {
	meta := storage.Meta{LeagueID: b.LeagueID}
	if b.Home != nil {
		meta.HomeTeamID = b.Home.TeamID
	}
	if b.Away != nil {
		meta.AwayTeamID = b.Away.TeamID
	}
	if b.Match != nil {
		meta.MatchID = b.Match.MatchID
	}
	return meta
}

// Get 读取已保存的分析
func (uc *AnalysisUseCase) Get(ctx context.Context, id int64) (*storage.Record, error) {
	return uc.repo.Get(ctx, id)
}

// List 分页列出已保存的分析
func (uc *AnalysisUseCase) List(ctx context.Context, page, pageSize int) ([]storage.Summary, error) {
	return uc.repo.List(ctx, pageSize, (page-1)*pageSize)
}
