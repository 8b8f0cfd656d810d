package server

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/match_radar/app/analyst/internal/conf"
	"github.com/iWorld-y/match_radar/app/analyst/internal/service"
	"github.com/iWorld-y/match_radar/app/analyst/internal/usecase"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
)

func NewHTTPServer(c *conf.Server, s *service.AnalystService, uc *usecase.UserUseCase,
	m *metrics.Metrics, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			authenticate(uc),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, http.Timeout(d))
			}
		}
	}

	srv := http.NewServer(opts...)
	registerAnalystHTTPServer(srv, s)
	srv.Handle("/metrics", m.Handler())
	return srv
}

func registerAnalystHTTPServer(srv *http.Server, s *service.AnalystService) {
	r := srv.Route("/")
	r.POST("/api/v1/users/register", handle("Register", bindBody[service.RegisterRequest], s.Register))
	r.POST("/api/v1/users/login", handle("Login", bindBody[service.LoginRequest], s.Login))

	r.POST("/api/v1/analyses", handle("Analyze", bindBody[service.AnalyzeRequest], s.Analyze))
	r.GET("/api/v1/analyses", handle("ListAnalyses", bindQuery[service.ListAnalysesRequest], s.ListAnalyses))
	r.GET("/api/v1/analyses/{id}", handle("GetAnalysis", func(ctx http.Context, in *service.GetAnalysisRequest) error {
		id, err := strconv.ParseInt(ctx.Vars().Get("id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_ID", "analysis id must be an integer")
		}
		in.ID = id
		return nil
	}, s.GetAnalysis))

	r.POST("/api/v1/sessions", handle("CreateSession", noBind[service.CreateSessionRequest], s.CreateSession))
	r.POST("/api/v1/sessions/{id}/analysis", handle("AttachAnalysis", func(ctx http.Context, in *service.AttachAnalysisRequest) error {
		if err := ctx.Bind(in); err != nil {
			return err
		}
		in.SessionID = ctx.Vars().Get("id")
		return nil
	}, s.AttachAnalysis))
	r.POST("/api/v1/sessions/{id}/messages", handle("Ask", func(ctx http.Context, in *service.AskRequest) error {
		if err := ctx.Bind(in); err != nil {
			return err
		}
		in.SessionID = ctx.Vars().Get("id")
		return nil
	}, s.Ask))
	r.GET("/api/v1/sessions/{id}/messages", handle("History", func(ctx http.Context, in *service.HistoryRequest) error {
		in.SessionID = ctx.Vars().Get("id")
		return nil
	}, s.History))
	r.DELETE("/api/v1/sessions/{id}", handle("ResetSession", func(ctx http.Context, in *service.ResetSessionRequest) error {
		in.SessionID = ctx.Vars().Get("id")
		return nil
	}, s.ResetSession))

	r.GET("/api/v1/memories", handle("ListMemories", bindQuery[service.ListMemoriesRequest], s.ListMemories))
}

func bindBody[T any](ctx http.Context, in *T) error  { return ctx.Bind(in) }
func bindQuery[T any](ctx http.Context, in *T) error { return ctx.BindQuery(in) }
func noBind[T any](http.Context, *T) error           { return nil }

// handle 按 kratos 生成代码的方式包装处理函数，使服务端中间件作用于每个请求
func handle[Req, Reply any](operation string, bind func(http.Context, *Req) error,
	call func(context.Context, *Req) (*Reply, error)) http.HandlerFunc {
	operation = "/match_radar.analyst.v1.Analyst/" + operation
	return func(ctx http.Context) error {
		var in Req
		if err := bind(ctx, &in); err != nil {
			return err
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(ctx, req.(*Req))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
