package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/llm"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/news"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/prompts"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/stats"
)

// Stage 流水线阶段
type Stage string

const (
	StageSearch     Stage = "search"
	StageSynthesize Stage = "synthesize"
	StageSummarize  Stage = "summarize"
	StageElaborate  Stage = "elaborate"
	StageCombine    Stage = "combine"
	StageInsights   Stage = "insights"
)

// newsLookback 新闻检索向前覆盖的天数
const newsLookback = 30

// StageError 某阶段失败，流水线在该阶段终止
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage 取出失败阶段，非 StageError 返回空串
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Completer 文本补全
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// NewsSearcher 新闻检索
type NewsSearcher interface {
	Search(ctx context.Context, phrase string, opts ...news.SearchOption) ([]model.NewsItem, error)
}

// ProgressFunc 进度回调，percent 取值 0-100
type ProgressFunc func(stage Stage, status string, percent int)

// RunOptions 单次运行选项
type RunOptions struct {
	// DBInsights 非空时执行 combine 阶段
	DBInsights *string
	Progress   ProgressFunc
}

// Engine 分析流水线：search → synthesize → summarize → elaborate → combine。
// 各阶段之间只通过 AnalysisResult 传递数据，Engine 本身无可变状态，可并发使用
type Engine struct {
	llm     Completer
	news    NewsSearcher
	prompts *prompts.Set
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewEngine 创建流水线，set 为空时使用内置模板，m 可为空
func NewEngine(completer Completer, searcher NewsSearcher, set *prompts.Set, m *metrics.Metrics) *Engine {
	if set == nil {
		set = prompts.Default()
	}
	return &Engine{
		llm:     completer,
		news:    searcher,
		prompts: set,
		metrics: m,
		log:     logger.Component("pipeline"),
	}
}

// Run 执行完整流水线。失败时返回已完成阶段的部分结果以及 *StageError
func (e *Engine) Run(ctx context.Context, q model.MatchQuery, opts RunOptions) (*model.AnalysisResult, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(Stage, string, int) {}
	}
	topic := q.Topic()
	res := &model.AnalysisResult{}
	if opts.DBInsights != nil {
		res.DBInsights = model.Text(*opts.DBInsights)
	}
	e.log.Infof("开始分析 [%s]", topic)

	// 1. 检索新闻
	progress(StageSearch, "searching news", 0)
	start := time.Now()
	items, err := e.news.Search(ctx, news.SearchPhrase(q),
		news.Between(q.Date.AddDate(0, 0, -newsLookback), q.Date.AddDate(0, 0, 1)))
	e.metrics.ObserveStage(string(StageSearch), time.Since(start), err)
	if err != nil {
		return res, e.fail(StageSearch, err)
	}
	res.RawNews = news.FormatRaw(topic, items)
	e.log.Infof("检索到 %d 条新闻 [%s]", len(items), topic)

	in := prompts.Input{Topic: topic, RawNews: res.RawNews}

	// 2. 新闻综合
	progress(StageSynthesize, "synthesizing news", 20)
	if res.SynthesizedNews, err = e.stage(ctx, StageSynthesize, &e.prompts.Synthesize, in); err != nil {
		return res, err
	}
	in.SynthesizedNews = res.SynthesizedNews

	// 3. 初步分析
	progress(StageSummarize, "writing initial analysis", 40)
	if res.InitialAnalysis, err = e.stage(ctx, StageSummarize, &e.prompts.Summarize, in); err != nil {
		return res, err
	}
	in.InitialAnalysis = res.InitialAnalysis

	// 4. 深化分析
	progress(StageElaborate, "elaborating analysis", 60)
	if res.EnhancedAnalysis, err = e.stage(ctx, StageElaborate, &e.prompts.Elaborate, in); err != nil {
		return res, err
	}
	in.EnhancedAnalysis = res.EnhancedAnalysis

	// 5. 与数据库洞察合并
	if res.DBInsights != nil {
		progress(StageCombine, "combining with database insights", 80)
		in.DBInsights = *res.DBInsights
		combined, err := e.stage(ctx, StageCombine, &e.prompts.Combine, in)
		if err != nil {
			return res, err
		}
		res.CombinedAnalysis = &combined
	}

	progress("", "done", 100)
	e.log.Infof("分析完成 [%s]", topic)
	return res, nil
}

// Insights 由结构化比赛数据生成 db_insights 文本
func (e *Engine) Insights(ctx context.Context, q model.MatchQuery, bundle *stats.Bundle) (string, error) {
	if bundle == nil {
		return "", &StageError{Stage: StageInsights, Err: errors.New("no statistics bundle")}
	}
	return e.stage(ctx, StageInsights, &e.prompts.Insights, prompts.Input{
		Topic:     q.Topic(),
		StatsData: bundle.Format(),
	})
}

func (e *Engine) stage(ctx context.Context, st Stage, tpl *prompts.Template, in prompts.Input) (string, error) {
	start := time.Now()
	out, err := e.complete(ctx, tpl, in)
	e.metrics.ObserveStage(string(st), time.Since(start), err)
	if err != nil {
		return "", e.fail(st, err)
	}
	e.log.Debugf("阶段 [%s] 完成，耗时 %s，输出 %d 字符", st, time.Since(start).Round(time.Millisecond), len(out))
	return out, nil
}

func (e *Engine) complete(ctx context.Context, tpl *prompts.Template, in prompts.Input) (string, error) {
	system, user, err := tpl.Render(in)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	out, err := e.llm.Complete(ctx, llm.Messages(system, user))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", llm.ErrEmptyCompletion
	}
	return out, nil
}

func (e *Engine) fail(st Stage, err error) error {
	e.log.Errorf("阶段 [%s] 失败: %v", st, err)
	return &StageError{Stage: st, Err: err}
}
