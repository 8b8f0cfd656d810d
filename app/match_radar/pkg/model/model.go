package model

import (
	"strings"
	"time"
)

// NewsItem 检索得到的单条新闻，不单独持久化
type NewsItem struct {
	Title         string
	URL           string
	Summary       string
	FullText      string // 可选，抓取失败时为空
	PublishedDate string
}

// AnalysisResult 分层的比赛分析结果
type AnalysisResult struct {
	RawNews          string             `json:"raw_news"`
	SynthesizedNews  string             `json:"synthesized_news"`
	InitialAnalysis  string             `json:"initial_analysis"`
	EnhancedAnalysis string             `json:"enhanced_analysis"`
	DBInsights       *string            `json:"db_insights,omitempty"`
	CombinedAnalysis *string            `json:"combined_analysis,omitempty"`
	BettingInsights  map[string]BetInfo `json:"betting_insights,omitempty"`
}

// Canonical 按 combined > enhanced > db_insights > initial 选出代表性分析文本，从不返回 raw_news
func (r *AnalysisResult) Canonical() string {
	if r == nil {
		return ""
	}
	for _, s := range []string{
		deref(r.CombinedAnalysis),
		r.EnhancedAnalysis,
		deref(r.DBInsights),
		r.InitialAnalysis,
	} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Insights 返回数据库洞察文本，不存在时为空串
func (r *AnalysisResult) Insights() string {
	if r == nil {
		return ""
	}
	return deref(r.DBInsights)
}

// HasCombined 是否存在合并分析
func (r *AnalysisResult) HasCombined() bool {
	return r != nil && strings.TrimSpace(deref(r.CombinedAnalysis)) != ""
}

// Text 返回字符串指针，空串返回 nil
func Text(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn 一轮对话消息
type ChatTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryRecord 长期记忆条目，按 user_id 隔离
type MemoryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Match     string    `json:"match"`
	League    string    `json:"league"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score,omitempty"` // 检索相关度
}
