package factory

import (
	"fmt"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/esnews"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/rssfeed"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/search"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/searxng"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例
func NewSearcher(cfg config.SearchConfig) (search.Searcher, error) {
	provider := cfg.Provider
	if provider == "" {
		// 默认回退逻辑：有 tavily key 则使用 tavily
		if cfg.Tavily.APIKey == "" {
			return nil, fmt.Errorf("search provider not configured")
		}
		provider = "tavily"
	}

	switch provider {
	case "tavily":
		if cfg.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Tavily.APIKey,
			tavily.WithBaseURL(cfg.Tavily.BaseURL),
			tavily.WithTimeout(cfg.Timeout()),
		), nil

	case "searxng":
		if cfg.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		timeout := cfg.SearXNG.Timeout
		if timeout == 0 {
			timeout = cfg.TimeoutSeconds
		}
		return searxng.NewClient(cfg.SearXNG.BaseURL, timeout, cfg.SearXNG.Language), nil

	case "elasticsearch":
		if len(cfg.Elasticsearch.Addresses) == 0 {
			return nil, fmt.Errorf("elasticsearch addresses are missing")
		}
		return esnews.New(esnews.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
			Index:     cfg.Elasticsearch.Index,
		})

	case "rss":
		if len(cfg.RSS.Feeds) == 0 {
			return nil, fmt.Errorf("rss feeds are missing")
		}
		return rssfeed.NewClient(cfg.RSS.Feeds), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
