package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/memory"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/prompts"
)

// recallLimit 每次问答检索的记忆条数
const recallLimit = 5

// Completer 文本补全
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// Responder 基于分析上下文回答问题，可选地读写长期记忆
type Responder struct {
	llm     Completer
	prompts *prompts.Set
	memory  memory.Store
	log     *logrus.Entry
}

// NewResponder 创建问答器，mem 为 nil 时不使用长期记忆
func NewResponder(completer Completer, set *prompts.Set, mem memory.Store) *Responder {
	if set == nil {
		set = prompts.Default()
	}
	return &Responder{llm: completer, prompts: set, memory: mem, log: logger.Component("chat")}
}

// MemoryEnabled 是否启用长期记忆
func (r *Responder) MemoryEnabled() bool {
	return r.memory != nil
}

// AnswerInput 单次问答输入
type AnswerInput struct {
	Question string
	Context  string
	History  []model.ChatTurn
	UserID   string
	Query    model.MatchQuery
}

// Answer 依次发送 system 上下文、历史对话与当前问题。
// 回答后为非匿名用户写入记忆，写入失败只记录日志
func (r *Responder) Answer(ctx context.Context, in AnswerInput) (string, error) {
	system, user, err := r.prompts.Chat.Render(prompts.Input{Context: in.Context, Question: in.Question})
	if err != nil {
		return "", fmt.Errorf("render chat prompt: %w", err)
	}

	msgs := make([]*schema.Message, 0, len(in.History)+2)
	msgs = append(msgs, &schema.Message{Role: schema.System, Content: system})
	for _, turn := range in.History {
		role := schema.User
		if turn.Role == model.RoleAssistant {
			role = schema.Assistant
		}
		msgs = append(msgs, &schema.Message{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: user})

	answer, err := r.llm.Complete(ctx, msgs)
	if err != nil {
		return "", err
	}

	if r.memory != nil && !memory.IsAnonymous(in.UserID) {
		rec := model.MemoryRecord{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			Query:     in.Question,
			Response:  answer,
			Match:     in.Query.Title(),
			League:    in.Query.League,
			Date:      in.Query.DateString(),
			Timestamp: time.Now(),
		}
		if err := r.memory.Add(ctx, rec); err != nil {
			r.log.Warnf("写入记忆失败 user=%s: %v", in.UserID, err)
		}
	}
	return answer, nil
}

// Recall 检索与问题相关的记忆，检索词为 "{问题} {比赛} {联赛}"。
// 记忆未启用、匿名用户或检索失败时返回空
func (r *Responder) Recall(ctx context.Context, userID, question string, q model.MatchQuery) []model.MemoryRecord {
	if r.memory == nil || memory.IsAnonymous(userID) {
		return nil
	}
	phrase := fmt.Sprintf("%s %s %s", question, q.Title(), q.League)
	found, err := r.memory.Search(ctx, userID, phrase, recallLimit)
	if err != nil {
		r.log.Warnf("检索记忆失败 user=%s: %v", userID, err)
		return nil
	}
	return found
}

// Memories 列出用户的全部记忆
func (r *Responder) Memories(ctx context.Context, userID string, limit int) ([]model.MemoryRecord, error) {
	if r.memory == nil || memory.IsAnonymous(userID) {
		return nil, nil
	}
	return r.memory.All(ctx, userID, limit)
}
