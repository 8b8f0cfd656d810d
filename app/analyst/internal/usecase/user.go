package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/iWorld-y/match_radar/app/analyst/internal/conf"
	"github.com/iWorld-y/match_radar/app/analyst/internal/repo"
)

// ErrInvalidToken 令牌无效或已过期
var ErrInvalidToken = errors.New("invalid token")

func unavailable() error {
	return kerrors.ServiceUnavailable("USER_STORE_UNAVAILABLE", "accounts are disabled: database unavailable")
}

// UserUseCase 用户业务逻辑
type UserUseCase struct {
	repo   repo.UserRepo
	log    *log.Helper
	jwtKey string
	ttl    time.Duration
}

// NewUserUseCase 创建用户业务逻辑实例
func NewUserUseCase(repo repo.UserRepo, auth *conf.Auth, logger log.Logger) *UserUseCase {
	jwtKey := "default-secret"
	ttl := 24 * time.Hour
	if auth != nil {
		if auth.JwtKey != "" {
			jwtKey = auth.JwtKey
		}
		if d, err := time.ParseDuration(auth.TokenTTL); err == nil && d > 0 {
			ttl = d
		}
	}
	return &UserUseCase{
		repo:   repo,
		log:    log.NewHelper(logger),
		jwtKey: jwtKey,
		ttl:    ttl,
	}
}

// Register 用户注册
func (uc *UserUseCase) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return kerrors.BadRequest("INVALID_ARGUMENT", "username and password are required")
	}
	// 使用 bcrypt 对密码进行哈希处理
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = uc.repo.CreateUser(ctx, &repo.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	})
	switch {
	case errors.Is(err, repo.ErrUserExists):
		return kerrors.Conflict("USER_EXISTS", "username already taken")
	case errors.Is(err, repo.ErrUserStoreUnavailable):
		return unavailable()
	}
	return err
}

// Login 用户登录，返回以用户名为 subject 的 JWT
func (uc *UserUseCase) Login(ctx context.Context, username, password string) (string, error) {
	u, err := uc.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repo.ErrUserNotFound) {
		return "", kerrors.Unauthorized("AUTH_FAILED", "invalid username or password")
	}
	if errors.Is(err, repo.ErrUserStoreUnavailable) {
		return "", unavailable()
	}
	if err != nil {
		return "", err
	}
	// 验证密码哈希
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", kerrors.Unauthorized("AUTH_FAILED", "invalid username or password")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   u.Username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(uc.ttl)),
	})
	return token.SignedString([]byte(uc.jwtKey))
}

// ParseToken 校验令牌并返回用户名
func (uc *UserUseCase) ParseToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(uc.jwtKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
