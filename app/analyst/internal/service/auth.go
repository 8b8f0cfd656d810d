package service

import "context"

type userKey struct{}

// WithUser 将已认证的用户名写入上下文
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// UserFromContext 当前用户名，未登录为空
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}
