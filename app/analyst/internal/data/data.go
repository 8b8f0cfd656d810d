package data

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jmoiron/sqlx"

	"github.com/iWorld-y/match_radar/app/analyst/internal/repo"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/stats"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

// Data 持有主库连接：分析缓存、用户表与只读统计表共用一个库。
// 启动时数据库不可达则 db 为 nil，缓存、统计与账号功能降级
type Data struct {
	db *sqlx.DB
}

func NewData(c *config.Config, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	ctx := context.Background()
	db, err := storage.Open(ctx, c.DB)
	if err != nil {
		helper.Warnf("数据库不可用，分析缓存、统计与账号功能已禁用: %v", err)
		return &Data{}, func() {}, nil
	}

	id := "SERIAL PRIMARY KEY"
	if db.DriverName() == storage.DriverSQLite {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	// Init schema for users
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, id)); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init users table: %w", err)
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		db.Close()
	}
	return &Data{db: db}, cleanup, nil
}

// Available 数据库是否可用
func (d *Data) Available() bool {
	return d.db != nil
}

// NewAnalysisRepo 分析缓存，数据库不可用时每次都重新计算且不保存
func NewAnalysisRepo(d *Data, c *config.Config) (repo.AnalysisRepo, error) {
	if !d.Available() {
		return nopAnalysisRepo{}, nil
	}
	return storage.New(context.Background(), d.db, storage.WithStrictLeague(c.Analysis.StrictLeague))
}

// NewStatsGateway 统计数据，禁用或数据库不可用时返回 nil
func NewStatsGateway(d *Data, c *config.Config) stats.Gateway {
	if c.Analysis.DisableStats || !d.Available() {
		return nil
	}
	return stats.NewStore(d.db)
}

// nopAnalysisRepo 缓存禁用时的空实现
type nopAnalysisRepo struct{}

func (nopAnalysisRepo) Exists(context.Context, model.MatchQuery) (bool, int64, error) {
	return false, 0, nil
}

func (nopAnalysisRepo) Load(context.Context, int64) (*model.AnalysisResult, error) {
	return nil, storage.ErrNotFound
}

func (nopAnalysisRepo) Get(context.Context, int64) (*storage.Record, error) {
	return nil, storage.ErrNotFound
}

func (nopAnalysisRepo) Store(context.Context, model.MatchQuery, *model.AnalysisResult, storage.Meta) (int64, error) {
	return 0, nil
}

func (nopAnalysisRepo) List(context.Context, int, int) ([]storage.Summary, error) {
	return nil, nil
}
