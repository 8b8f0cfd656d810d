package service

import (
	"time"

	"github.com/iWorld-y/match_radar/app/analyst/internal/usecase"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginReply struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// AnalyzeRequest 比赛分析请求，use_news/use_stats 省略时按服务配置
type AnalyzeRequest struct {
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	League   string `json:"league"`
	Date     string `json:"date"`
	UseNews  *bool  `json:"use_news,omitempty"`
	UseStats *bool  `json:"use_stats,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

type AnalysisReply struct {
	ID          int64                 `json:"id,omitempty"`
	Match       string                `json:"match"`
	HomeTeam    string                `json:"home_team"`
	AwayTeam    string                `json:"away_team"`
	League      string                `json:"league"`
	Date        string                `json:"date"`
	Cached      bool                  `json:"cached"`
	FailedStage string                `json:"failed_stage,omitempty"`
	Analysis    string                `json:"analysis"`
	Result      *model.AnalysisResult `json:"result,omitempty"`
}

func newAnalysisReply(a *usecase.Analysis) *AnalysisReply {
	q := a.Query
	reply := &AnalysisReply{
		ID:          a.ID,
		Match:       q.Title(),
		HomeTeam:    q.HomeTeam,
		AwayTeam:    q.AwayTeam,
		League:      q.League,
		Date:        q.DateString(),
		Cached:      a.Cached,
		FailedStage: a.FailedStage,
		Result:      a.Result,
	}
	if a.Result != nil {
		reply.Analysis = a.Result.Canonical()
	}
	return reply
}

type ListAnalysesRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type ListAnalysesReply struct {
	Analyses []storage.Summary `json:"analyses"`
}

type GetAnalysisRequest struct {
	ID int64 `json:"id"`
}

type CreateSessionRequest struct{}

type SessionReply struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	AnalysisID int64     `json:"analysis_id,omitempty"`
}

// AttachAnalysisRequest 二选一：analysis_id 关联已保存的分析，否则按比赛信息执行分析
type AttachAnalysisRequest struct {
	SessionID  string `json:"-"`
	AnalysisID int64  `json:"analysis_id,omitempty"`
	AnalyzeRequest
}

type AttachAnalysisReply struct {
	Session  *SessionReply  `json:"session"`
	Attached bool           `json:"attached"`
	Analysis *AnalysisReply `json:"analysis"`
}

type AskRequest struct {
	SessionID string `json:"-"`
	Question  string `json:"question"`
}

type AskReply struct {
	Answer string `json:"answer"`
}

type HistoryRequest struct {
	SessionID string `json:"-"`
}

type HistoryReply struct {
	State    string           `json:"state"`
	Messages []model.ChatTurn `json:"messages"`
}

type ResetSessionRequest struct {
	SessionID string `json:"-"`
}

type ListMemoriesRequest struct {
	Limit int `json:"limit"`
}

type ListMemoriesReply struct {
	Enabled  bool                 `json:"enabled"`
	Memories []model.MemoryRecord `json:"memories"`
}
