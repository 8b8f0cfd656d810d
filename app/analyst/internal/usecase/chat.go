package usecase

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/chat"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/memory"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// ErrEmptyAnalysis 分析没有可用于对话的正文
var ErrEmptyAnalysis = errors.New("analysis has no usable text")

// ChatUseCase 会话管理与问答
type ChatUseCase struct {
	sessions  *chat.Sessions
	responder *chat.Responder
	analysis  *AnalysisUseCase
	metrics   *metrics.Metrics
	log       *log.Helper
}

// NewChatUseCase 创建对话业务逻辑实例
func NewChatUseCase(sessions *chat.Sessions, responder *chat.Responder, analysis *AnalysisUseCase,
	m *metrics.Metrics, logger log.Logger) *ChatUseCase {
	return &ChatUseCase{
		sessions:  sessions,
		responder: responder,
		analysis:  analysis,
		metrics:   m,
		log:       log.NewHelper(logger),
	}
}

// userOrDefault 未登录用户共用默认身份，不读写记忆
func userOrDefault(userID string) string {
	if userID == "" {
		return memory.DefaultUserID
	}
	return userID
}

// CreateSession 新建处于 no-analysis 状态的会话
func (uc *ChatUseCase) CreateSession(userID string) *chat.Session {
	return uc.sessions.Create(userOrDefault(userID))
}

// Session 获取属于用户的会话
func (uc *ChatUseCase) Session(id, userID string) (*chat.Session, error) {
	return uc.sessions.Get(id, userOrDefault(userID))
}

// Analyze 执行分析并关联到会话。部分结果只要有正文也可用于对话
func (uc *ChatUseCase) Analyze(ctx context.Context, sessionID, userID string, req AnalyzeRequest) (*Analysis, error) {
	s, err := uc.Session(sessionID, userID)
	if err != nil {
		return nil, err
	}
	a, err := uc.analysis.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	if a.Result == nil || a.Result.Canonical() == "" {
		return a, ErrEmptyAnalysis
	}
	s.Attach(a.Query, a.Result, a.ID)
	return a, nil
}

// AttachStored 将已保存的分析关联到会话
func (uc *ChatUseCase) AttachStored(ctx context.Context, sessionID, userID string, analysisID int64) (*Analysis, error) {
	s, err := uc.Session(sessionID, userID)
	if err != nil {
		return nil, err
	}
	rec, err := uc.analysis.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	q, err := rec.Query()
	if err != nil {
		return nil, err
	}
	if rec.Result == nil || rec.Result.Canonical() == "" {
		return nil, ErrEmptyAnalysis
	}
	s.Attach(q, rec.Result, rec.ID)
	return &Analysis{ID: rec.ID, Query: q, Result: rec.Result, Cached: true}, nil
}

// Ask 在会话中提问
func (uc *ChatUseCase) Ask(ctx context.Context, sessionID, userID, question string) (string, error) {
	s, err := uc.Session(sessionID, userID)
	if err != nil {
		return "", err
	}
	answer, err := s.Ask(ctx, uc.responder, question)
	if errors.Is(err, chat.ErrNoAnalysis) {
		return "", err
	}
	uc.metrics.ChatTurn(err)
	if err != nil {
		uc.log.Errorf("回答失败 session=%s: %v", sessionID, err)
		return "", err
	}
	return answer, nil
}

// History 会话历史
func (uc *ChatUseCase) History(sessionID, userID string) ([]model.ChatTurn, chat.State, error) {
	s, err := uc.Session(sessionID, userID)
	if err != nil {
		return nil, "", err
	}
	return s.History(), s.State(), nil
}

// Reset 会话回到 no-analysis 状态
func (uc *ChatUseCase) Reset(sessionID, userID string) error {
	s, err := uc.Session(sessionID, userID)
	if err != nil {
		return err
	}
	s.Reset()
	return nil
}

// Memories 列出用户的长期记忆，limit 非正时取默认值
func (uc *ChatUseCase) Memories(ctx context.Context, userID string, limit int) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = memory.DefaultListLimit
	}
	return uc.responder.Memories(ctx, userOrDefault(userID), limit)
}

// MemoryEnabled 是否启用长期记忆
func (uc *ChatUseCase) MemoryEnabled() bool {
	return uc.responder.MemoryEnabled()
}
