package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

var (
	// ErrNoAnalysis 会话尚未关联分析
	ErrNoAnalysis = errors.New("no analysis attached to session")
	// ErrSessionNotFound 会话不存在或不属于当前用户
	ErrSessionNotFound = errors.New("session not found")
)

// State 会话状态
type State string

const (
	StateNoAnalysis State = "no-analysis"
	StateReady      State = "analysis-ready"
)

// Session 一个用户与一场比赛分析之间的对话
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	query      model.MatchQuery
	result     *model.AnalysisResult
	analysisID int64
	history    []model.ChatTurn
	// generation 每次 Attach/Reset 递增，丢弃过期问答的结果
	generation int
}

// NewSession 创建处于 no-analysis 状态的会话
func NewSession(userID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		state:     StateNoAnalysis,
	}
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attach 关联分析并清空历史
func (s *Session) Attach(q model.MatchQuery, r *model.AnalysisResult, analysisID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.query = q
	s.result = r
	s.analysisID = analysisID
	s.history = nil
	s.generation++
}

// Reset 回到 no-analysis 状态并清空历史
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateNoAnalysis
	s.query = model.MatchQuery{}
	s.result = nil
	s.analysisID = 0
	s.history = nil
	s.generation++
}

// Analysis 当前关联的分析
func (s *Session) Analysis() (model.MatchQuery, *model.AnalysisResult, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return model.MatchQuery{}, nil, 0, ErrNoAnalysis
	}
	return s.query, s.result, s.analysisID, nil
}

// History 对话历史副本
func (s *Session) History() []model.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatTurn(nil), s.history...)
}

// Ask 检索记忆、组装上下文并回答，成功后追加一问一答到历史。
// 问答期间会话被重新关联或重置时，结果不写入新的历史
func (s *Session) Ask(ctx context.Context, r *Responder, question string) (string, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return "", ErrNoAnalysis
	}
	q, res, gen := s.query, s.result, s.generation
	history := append([]model.ChatTurn(nil), s.history...)
	s.mu.Unlock()

	snippets := r.Recall(ctx, s.UserID, question, q)
	answer, err := r.Answer(ctx, AnswerInput{
		Question: question,
		Context:  BuildContext(q, res, snippets),
		History:  history,
		UserID:   s.UserID,
		Query:    q,
	})
	if err != nil {
		return "", err
	}

	now := time.Now()
	s.mu.Lock()
	if s.generation == gen {
		s.history = append(s.history,
			model.ChatTurn{Role: model.RoleUser, Content: question, Timestamp: now},
			model.ChatTurn{Role: model.RoleAssistant, Content: answer, Timestamp: now},
		)
	}
	s.mu.Unlock()
	return answer, nil
}

// DefaultIdleTTL 会话闲置超过该时长后被回收
const DefaultIdleTTL = 2 * time.Hour

// Sessions 进程内会话表，闲置超时的会话在 Create 时惰性清理
type Sessions struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// SessionsOption 会话表选项
type SessionsOption func(*Sessions)

// WithIdleTTL 设置闲置回收时长，<= 0 时使用默认值
func WithIdleTTL(d time.Duration) SessionsOption {
	return func(r *Sessions) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// NewSessions 创建会话表
func NewSessions(opts ...SessionsOption) *Sessions {
	r := &Sessions{
		sessions: make(map[string]*entry),
		ttl:      DefaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.now()
	return r
}

// Create 新建会话
func (r *Sessions) Create(userID string) *Session {
	s := NewSession(userID)
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	r.sessions[s.ID] = &entry{session: s, lastUsed: now}
	return s
}

// Get 获取属于 userID 的会话并刷新最近使用时间
func (r *Sessions) Get(id, userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if now.Sub(e.lastUsed) > r.ttl {
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	e.lastUsed = now
	return e.session, nil
}

// Len 当前会话数
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweep 每隔半个 TTL 清理一次闲置会话，调用方持有锁
func (r *Sessions) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.ttl/2 {
		return
	}
	r.lastSweep = now
	for id, e := range r.sessions {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.sessions, id)
		}
	}
}
