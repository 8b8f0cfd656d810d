package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/lib/pq"

	"github.com/iWorld-y/match_radar/app/analyst/internal/repo"
)

type userRepo struct {
	data *Data
	log  *log.Helper
}

func NewUserRepo(data *Data, logger log.Logger) repo.UserRepo {
	return &userRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *userRepo) CreateUser(ctx context.Context, u *repo.User) error {
	if !r.data.Available() {
		return repo.ErrUserStoreUnavailable
	}
	db := r.data.db
	err := db.GetContext(ctx, &u.ID,
		db.Rebind(`INSERT INTO users (username, password_hash) VALUES (?, ?) RETURNING id`),
		u.Username, u.PasswordHash)
	if isUniqueViolation(err) {
		return repo.ErrUserExists
	}
	return err
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*repo.User, error) {
	if !r.data.Available() {
		return nil, repo.ErrUserStoreUnavailable
	}
	db := r.data.db
	var u repo.User
	err := db.GetContext(ctx, &u,
		db.Rebind(`SELECT id, username, password_hash FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// modernc sqlite 没有导出约束错误码
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
