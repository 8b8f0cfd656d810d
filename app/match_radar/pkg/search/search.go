package search

import "context"

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query             string
	Topic             string // "news" or "general"
	MaxResults        int
	IncludeRawContent bool
	StartDate         string // Format: YYYY-MM-DD
	EndDate           string // Format: YYYY-MM-DD
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	RawContent    string
	Score         float64
	PublishedDate string
	Source        string // 提供方名称
}

// Top 按后端原有排序截取前 n 条，n <= 0 时不截断
func (r *Response) Top(n int) []Result {
	if r == nil {
		return nil
	}
	if n <= 0 || len(r.Results) <= n {
		return r.Results
	}
	return r.Results[:n]
}
