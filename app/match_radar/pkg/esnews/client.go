package esnews

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/search"
)

// Document 新闻归档索引中的文档结构
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Keywords  []string  `json:"keywords"`
	Source    string    `json:"source"`
	URLs      []string  `json:"urls"`
}

// Client 基于 Elasticsearch 新闻归档的检索器
type Client struct {
	es    *elasticsearch.Client
	index string
}

// Config 连接配置
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// New 创建归档检索客户端
func New(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es, index: cfg.Index}, nil
}

var _ search.Searcher = (*Client)(nil)

// Search 标题权重加倍的全文检索，可按日期区间过滤
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	size := req.MaxResults
	if size <= 0 {
		size = 5
	}

	boolQuery := map[string]any{
		"must": []map[string]any{{
			"multi_match": map[string]any{
				"query":  req.Query,
				"fields": []string{"title^2", "text"},
			},
		}},
	}
	if req.StartDate != "" || req.EndDate != "" {
		rangeQuery := map[string]any{}
		if req.StartDate != "" {
			rangeQuery["gte"] = req.StartDate
		}
		if req.EndDate != "" {
			rangeQuery["lte"] = req.EndDate
		}
		boolQuery["filter"] = []map[string]any{{
			"range": map[string]any{"timestamp": rangeQuery},
		}}
	}

	payload, err := json.Marshal(map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]search.Result, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		var link string
		if len(doc.URLs) > 0 {
			link = doc.URLs[0]
		}
		var published string
		if !doc.Timestamp.IsZero() {
			published = doc.Timestamp.UTC().Format(time.DateOnly)
		}
		results = append(results, search.Result{
			Title:         doc.Title,
			URL:           link,
			Content:       summarize(doc.Text, 400),
			RawContent:    doc.Text,
			Score:         hit.Score,
			PublishedDate: published,
			Source:        "elasticsearch:" + doc.Source,
		})
	}
	return &search.Response{Results: results}, nil
}

func summarize(text string, limit int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "..."
}
