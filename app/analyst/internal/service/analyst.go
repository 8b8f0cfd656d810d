package service

import (
	"context"
	"errors"
	"strings"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/match_radar/app/analyst/internal/usecase"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/chat"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

type AnalystService struct {
	ucUser     *usecase.UserUseCase
	ucAnalysis *usecase.AnalysisUseCase
	ucChat     *usecase.ChatUseCase
	log        *log.Helper
}

func NewAnalystService(ucUser *usecase.UserUseCase, ucAnalysis *usecase.AnalysisUseCase,
	ucChat *usecase.ChatUseCase, logger log.Logger) *AnalystService {
	return &AnalystService{
		ucUser:     ucUser,
		ucAnalysis: ucAnalysis,
		ucChat:     ucChat,
		log:        log.NewHelper(logger),
	}
}

// toHTTPError 将业务错误映射为带状态码的 kratos 错误
func toHTTPError(err error) error {
	var ke *kerrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ke):
		return ke
	case errors.Is(err, storage.ErrNotFound):
		return kerrors.NotFound("ANALYSIS_NOT_FOUND", "analysis not found")
	case errors.Is(err, chat.ErrSessionNotFound):
		return kerrors.NotFound("SESSION_NOT_FOUND", "session not found")
	case errors.Is(err, chat.ErrNoAnalysis):
		return kerrors.BadRequest("NO_ANALYSIS", "run or attach an analysis before asking questions")
	case errors.Is(err, usecase.ErrNothingToRun):
		return kerrors.BadRequest("NOTHING_TO_RUN", "news and stats cannot both be disabled")
	case errors.Is(err, usecase.ErrNoStatistics):
		return kerrors.NotFound("NO_STATISTICS", "no statistics available for match")
	case errors.Is(err, context.DeadlineExceeded):
		return kerrors.GatewayTimeout("TIMEOUT", err.Error())
	default:
		return kerrors.InternalServer("INTERNAL", err.Error())
	}
}

func (s *AnalystService) Register(ctx context.Context, req *RegisterRequest) (*RegisterReply, error) {
	if err := s.ucUser.Register(ctx, req.Username, req.Password); err != nil {
		return nil, toHTTPError(err)
	}
	return &RegisterReply{Success: true, Message: "success"}, nil
}

func (s *AnalystService) Login(ctx context.Context, req *LoginRequest) (*LoginReply, error) {
	token, err := s.ucUser.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &LoginReply{Token: token, Username: req.Username}, nil
}

func (r *AnalyzeRequest) toUseCase() (usecase.AnalyzeRequest, error) {
	q, err := model.ParseMatchQuery(r.HomeTeam, r.AwayTeam, r.League, strings.TrimSpace(r.Date))
	if err != nil {
		return usecase.AnalyzeRequest{}, kerrors.BadRequest("INVALID_MATCH", err.Error())
	}
	return usecase.AnalyzeRequest{Query: q, UseNews: r.UseNews, UseStats: r.UseStats, Force: r.Force}, nil
}

// Analyze 命中缓存直接返回，否则执行分析。部分失败时返回已完成阶段并标注 failed_stage
func (s *AnalystService) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalysisReply, error) {
	in, err := req.toUseCase()
	if err != nil {
		return nil, err
	}
	a, err := s.ucAnalysis.Analyze(ctx, in)
	if err != nil {
		s.log.WithContext(ctx).Errorf("分析失败 [%s]: %v", in.Query.Topic(), err)
		return nil, toHTTPError(err)
	}
	return newAnalysisReply(a), nil
}

func (s *AnalystService) ListAnalyses(ctx context.Context, req *ListAnalysesRequest) (*ListAnalysesReply, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	list, err := s.ucAnalysis.List(ctx, page, pageSize)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if list == nil {
		list = []storage.Summary{}
	}
	return &ListAnalysesReply{Analyses: list}, nil
}

func (s *AnalystService) GetAnalysis(ctx context.Context, req *GetAnalysisRequest) (*AnalysisReply, error) {
	rec, err := s.ucAnalysis.Get(ctx, req.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	q, err := rec.Query()
	if err != nil {
		return nil, toHTTPError(err)
	}
	return newAnalysisReply(&usecase.Analysis{ID: rec.ID, Query: q, Result: rec.Result, Cached: true}), nil
}

func newSessionReply(sess *chat.Session) *SessionReply {
	reply := &SessionReply{ID: sess.ID, State: string(sess.State()), CreatedAt: sess.CreatedAt}
	if _, _, id, err := sess.Analysis(); err == nil {
		reply.AnalysisID = id
	}
	return reply
}

func (s *AnalystService) CreateSession(ctx context.Context, _ *CreateSessionRequest) (*SessionReply, error) {
	return newSessionReply(s.ucChat.CreateSession(UserFromContext(ctx))), nil
}

// AttachAnalysis 为会话关联分析，成功后会话进入 analysis-ready
func (s *AnalystService) AttachAnalysis(ctx context.Context, req *AttachAnalysisRequest) (*AttachAnalysisReply, error) {
	user := UserFromContext(ctx)
	var (
		a   *usecase.Analysis
		err error
	)
	if req.AnalysisID > 0 {
		a, err = s.ucChat.AttachStored(ctx, req.SessionID, user, req.AnalysisID)
	} else {
		in, perr := req.AnalyzeRequest.toUseCase()
		if perr != nil {
			return nil, perr
		}
		a, err = s.ucChat.Analyze(ctx, req.SessionID, user, in)
	}
	attached := err == nil
	if err != nil && !(errors.Is(err, usecase.ErrEmptyAnalysis) && a != nil) {
		return nil, toHTTPError(err)
	}

	sess, err := s.ucChat.Session(req.SessionID, user)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AttachAnalysisReply{
		Session:  newSessionReply(sess),
		Attached: attached,
		Analysis: newAnalysisReply(a),
	}, nil
}

func (s *AnalystService) Ask(ctx context.Context, req *AskRequest) (*AskReply, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, kerrors.BadRequest("EMPTY_QUESTION", "question is required")
	}
	answer, err := s.ucChat.Ask(ctx, req.SessionID, UserFromContext(ctx), question)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AskReply{Answer: answer}, nil
}

func (s *AnalystService) History(ctx context.Context, req *HistoryRequest) (*HistoryReply, error) {
	turns, state, err := s.ucChat.History(req.SessionID, UserFromContext(ctx))
	if err != nil {
		return nil, toHTTPError(err)
	}
	if turns == nil {
		turns = []model.ChatTurn{}
	}
	return &HistoryReply{State: string(state), Messages: turns}, nil
}

func (s *AnalystService) ResetSession(ctx context.Context, req *ResetSessionRequest) (*SessionReply, error) {
	user := UserFromContext(ctx)
	if err := s.ucChat.Reset(req.SessionID, user); err != nil {
		return nil, toHTTPError(err)
	}
	sess, err := s.ucChat.Session(req.SessionID, user)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return newSessionReply(sess), nil
}

func (s *AnalystService) ListMemories(ctx context.Context, req *ListMemoriesRequest) (*ListMemoriesReply, error) {
	mems, err := s.ucChat.Memories(ctx, UserFromContext(ctx), req.Limit)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if mems == nil {
		mems = []model.MemoryRecord{}
	}
	return &ListMemoriesReply{Enabled: s.ucChat.MemoryEnabled(), Memories: mems}, nil
}
