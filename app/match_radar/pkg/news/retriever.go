package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/retry"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/search"
)

const maxFullTextRunes = 5000

// Fetcher 抓取文章正文
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ReadabilityFetcher 按请求上下文下载页面，再用 go-readability 提取正文
type ReadabilityFetcher struct {
	Timeout time.Duration
	Client  *http.Client
}

// Fetch 实现 Fetcher
func (f ReadabilityFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	timeout := f.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; MatchRadar/1.0)")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// Options 检索选项
type Options struct {
	MaxResults    int
	Timeout       time.Duration
	FetchFullText bool
	Fetcher       Fetcher
	Retry         retry.Policy
}

// Retriever 新闻检索：调用搜索后端并按需抓取正文
type Retriever struct {
	searcher search.Searcher
	opts     Options
	log      *logrus.Entry
}

// NewRetriever 创建新闻检索器
func NewRetriever(searcher search.Searcher, opts Options) *Retriever {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FetchFullText && opts.Fetcher == nil {
		opts.Fetcher = ReadabilityFetcher{Timeout: opts.Timeout}
	}
	return &Retriever{searcher: searcher, opts: opts, log: logger.Component("news")}
}

// SearchOption 单次检索选项
type SearchOption func(*search.Request)

// Between 限定新闻发布日期区间
func Between(start, end time.Time) SearchOption {
	return func(r *search.Request) {
		if !start.IsZero() {
			r.StartDate = start.Format(time.DateOnly)
		}
		if !end.IsZero() {
			r.EndDate = end.Format(time.DateOnly)
		}
	}
}

// Search 按后端相关度返回至多 MaxResults 条新闻，无结果返回空切片而非错误
func (r *Retriever) Search(ctx context.Context, phrase string, opts ...SearchOption) ([]model.NewsItem, error) {
	req := &search.Request{
		Query:      phrase,
		Topic:      "news",
		MaxResults: r.opts.MaxResults,
	}
	for _, opt := range opts {
		opt(req)
	}

	var resp *search.Response
	err := r.opts.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		var err error
		resp, err = r.searcher.Search(callCtx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", phrase, err)
	}

	results := resp.Top(r.opts.MaxResults)
	items := make([]model.NewsItem, 0, len(results))
	for _, res := range results {
		item := model.NewsItem{
			Title:         strings.TrimSpace(res.Title),
			URL:           res.URL,
			Summary:       strings.TrimSpace(res.Content),
			PublishedDate: res.PublishedDate,
		}
		if r.opts.FetchFullText {
			item.FullText = r.fullText(ctx, res)
		}
		items = append(items, item)
	}
	r.log.Debugf("检索 [%s] 返回 %d 条新闻", phrase, len(items))
	return items, nil
}

// fullText 正文抓取失败不影响检索结果
func (r *Retriever) fullText(ctx context.Context, res search.Result) string {
	text := res.RawContent
	if text == "" && res.URL != "" {
		fetched, err := r.opts.Fetcher.Fetch(ctx, res.URL)
		if err != nil {
			r.log.Debugf("抓取正文失败 [%s]: %v", res.URL, err)
			return ""
		}
		text = fetched
	}
	return truncateRunes(strings.TrimSpace(text), maxFullTextRunes)
}

// SearchPhrase 比赛新闻检索词，形如 "{topic} football match news 2024-05"
func SearchPhrase(q model.MatchQuery) string {
	return fmt.Sprintf("%s football match news %s", q.Topic(), q.Date.Format("2006-01"))
}

// NoNewsSentinel 无检索结果时的占位文本
func NoNewsSentinel(topic string) string {
	return fmt.Sprintf("No news found for %s.", topic)
}

// FormatRaw 拼接检索结果为 raw_news，空结果返回占位文本
func FormatRaw(topic string, items []model.NewsItem) string {
	if len(items) == 0 {
		return NoNewsSentinel(topic)
	}
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Title: %s\nURL: %s\nSummary: %s", it.Title, it.URL, it.Summary)
		if it.FullText != "" {
			fmt.Fprintf(&sb, "\nContent:\n%s", it.FullText)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
