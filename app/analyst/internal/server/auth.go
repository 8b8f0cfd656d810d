package server

import (
	"context"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"

	"github.com/iWorld-y/match_radar/app/analyst/internal/service"
	"github.com/iWorld-y/match_radar/app/analyst/internal/usecase"
)

const bearerPrefix = "Bearer "

// authenticate 解析可选的 Bearer 令牌。没有令牌按匿名处理，令牌无效则拒绝
func authenticate(uc *usecase.UserUseCase) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return handler(ctx, req)
			}
			header := tr.RequestHeader().Get("Authorization")
			if header == "" {
				return handler(ctx, req)
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				return nil, errors.Unauthorized("INVALID_TOKEN", "authorization header must be a bearer token")
			}
			username, err := uc.ParseToken(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				return nil, errors.Unauthorized("INVALID_TOKEN", err.Error())
			}
			return handler(service.WithUser(ctx, username), req)
		}
	}
}
