package server

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/chat"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/events"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/guard"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/llm"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/memory"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/news"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/pipeline"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/prompts"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/retry"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/search"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/search/factory"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

// errNewsUnavailable 未配置搜索后端时，新闻阶段以检索失败结束
var errNewsUnavailable = errors.New("news search is not configured")

type unavailableSearcher struct{}

func (unavailableSearcher) Search(context.Context, *search.Request) (*search.Response, error) {
	return nil, errNewsUnavailable
}

// NewPromptSet 加载阶段模板
func NewPromptSet(c *config.Config) (*prompts.Set, error) {
	return prompts.Load(c.Analysis.PromptsFile)
}

// NewCompleter 初始化带限流与重试的补全客户端
func NewCompleter(c *config.Config) (*llm.Client, error) {
	cm, err := llm.NewChatModel(context.Background(), c.LLM)
	if err != nil {
		return nil, err
	}
	policy := retry.Default()
	policy.Attempts = c.LLM.MaxRetries + 1
	return llm.NewClient(cm, llm.Options{
		Timeout: c.LLM.Timeout(),
		Limiter: llm.NewLimiter(c.Concurrency),
		Retry:   policy,
	}), nil
}

// NewNewsRetriever 初始化新闻检索。禁用新闻时搜索后端可以不配置
func NewNewsRetriever(c *config.Config, logger log.Logger) (*news.Retriever, error) {
	searcher, err := factory.NewSearcher(c.Search)
	if err != nil {
		if !c.Analysis.DisableNews {
			return nil, err
		}
		log.NewHelper(logger).Warnf("新闻检索未配置，仅使用统计数据: %v", err)
		searcher = unavailableSearcher{}
	}
	return news.NewRetriever(searcher, news.Options{
		MaxResults:    c.Search.MaxResults,
		Timeout:       c.Search.Timeout(),
		FetchFullText: c.Search.FetchFullText,
		Retry:         retry.Policy{Attempts: 2, Min: time.Second, Max: 5 * time.Second},
	}), nil
}

// NewRadarEngine 初始化分析流水线
func NewRadarEngine(completer *llm.Client, retriever *news.Retriever, set *prompts.Set, m *metrics.Metrics) *pipeline.Engine {
	return pipeline.NewEngine(completer, retriever, set, m)
}

// NewMemoryStore 初始化长期记忆。连接失败时降级为不使用记忆
func NewMemoryStore(c *config.Config, logger log.Logger) (memory.Store, func()) {
	helper := log.NewHelper(logger)
	cfg := c.Memory
	if !cfg.Enabled {
		return nil, func() {}
	}
	if cfg.DSN == "" {
		if c.DB.Driver != storage.DriverPostgres {
			helper.Warn("长期记忆需要 PostgreSQL (pgvector)，已禁用")
			return nil, func() {}
		}
		cfg.DSN = c.DB.ConnString()
	}

	store, err := memory.Open(context.Background(), cfg)
	if err != nil {
		helper.Warnf("长期记忆不可用，已禁用: %v", err)
		return nil, func() {}
	}
	return store, func() {
		helper.Info("closing the memory store")
		store.Close()
	}
}

// NewLocker 配置了 Redis 时使用分布式锁，连接失败退回进程内锁
func NewLocker(c *config.Config, logger log.Logger) (guard.Locker, func()) {
	helper := log.NewHelper(logger)
	if c.Redis.Addr == "" {
		return guard.NewLocal(), func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := guard.NewRedis(ctx, c.Redis)
	if err != nil {
		helper.Warnf("Redis 不可用，使用进程内锁: %v", err)
		return guard.NewLocal(), func() {}
	}
	return r, func() {
		if err := r.Close(); err != nil {
			helper.Errorf("failed to close redis: %v", err)
		}
	}
}

// NewPublisher 分析事件发布，未配置 broker 时为空实现
func NewPublisher(c *config.Config, logger log.Logger) (events.Publisher, func()) {
	p := events.New(c.Kafka)
	return p, func() {
		if err := p.Close(); err != nil {
			log.NewHelper(logger).Errorf("failed to close event publisher: %v", err)
		}
	}
}

// NewSessions 对话会话表
func NewSessions(c *config.Config) *chat.Sessions {
	return chat.NewSessions(chat.WithIdleTTL(time.Duration(c.Analysis.SessionIdleMinutes) * time.Minute))
}

// NewResponder 对话问答，mem 为 nil 时不使用长期记忆
func NewResponder(completer *llm.Client, set *prompts.Set, mem memory.Store) *chat.Responder {
	return chat.NewResponder(completer, set, mem)
}
