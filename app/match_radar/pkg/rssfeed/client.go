package rssfeed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/search"
)

// 检索词里不参与匹配的常用词
var stopWords = map[string]bool{
	"vs": true, "v": true, "the": true, "and": true, "fc": true,
	"football": true, "match": true, "news": true,
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
}

// Client 订阅源检索器：拉取配置的 RSS/Atom 源，按关键词命中数排序
type Client struct {
	feeds  []string
	parser *gofeed.Parser
}

// NewClient 创建订阅源检索器
func NewClient(feeds []string) *Client {
	return &Client{feeds: feeds, parser: gofeed.NewParser()}
}

var _ search.Searcher = (*Client)(nil)

type scored struct {
	result    search.Result
	hits      int
	published time.Time
}

// Search 单个源失败只记录日志，全部失败才返回错误
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	terms := queryTerms(req.Query)
	start, end := parseDay(req.StartDate), parseDay(req.EndDate)
	if !end.IsZero() {
		end = end.Add(24 * time.Hour)
	}

	var (
		candidates []scored
		failed     int
		lastErr    error
	)
	for _, feedURL := range c.feeds {
		feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failed++
			lastErr = err
			logger.Log.Warnf("订阅源拉取失败 [%s]: %v", feedURL, err)
			continue
		}
		for _, item := range feed.Items {
			var published time.Time
			if item.PublishedParsed != nil {
				published = *item.PublishedParsed
			}
			if !published.IsZero() && ((!start.IsZero() && published.Before(start)) || (!end.IsZero() && !published.Before(end))) {
				continue
			}

			hits := countHits(strings.ToLower(item.Title+" "+item.Description), terms)
			if hits < minHits(terms) {
				continue
			}

			var date string
			if !published.IsZero() {
				date = published.UTC().Format(time.DateOnly)
			}
			candidates = append(candidates, scored{
				result: search.Result{
					Title:         strings.TrimSpace(item.Title),
					URL:           item.Link,
					Content:       strings.TrimSpace(item.Description),
					RawContent:    item.Content,
					Score:         float64(hits) / float64(len(terms)),
					PublishedDate: date,
					Source:        "rss:" + feed.Title,
				},
				hits:      hits,
				published: published,
			})
		}
	}

	if len(c.feeds) > 0 && failed == len(c.feeds) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, lastErr)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hits != candidates[j].hits {
			return candidates[i].hits > candidates[j].hits
		}
		return candidates[i].published.After(candidates[j].published)
	})

	resp := &search.Response{Results: make([]search.Result, 0, len(candidates))}
	for _, cand := range candidates {
		resp.Results = append(resp.Results, cand.result)
	}
	resp.Results = resp.Top(req.MaxResults)
	return resp, nil
}

func queryTerms(q string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(q)) {
		f = strings.Trim(f, ".,:;!?\"'()")
		if len(f) < 3 || stopWords[f] || seen[f] {
			continue
		}
		if _, err := fmt.Sscanf(f, "%d", new(int)); err == nil {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func countHits(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func minHits(terms []string) int {
	if len(terms) < 2 {
		return 1
	}
	return 2
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
