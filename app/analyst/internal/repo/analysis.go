package repo

import (
	"context"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/storage"
)

// AnalysisRepo 分析结果缓存
type AnalysisRepo interface {
	// Exists 查找同一场比赛的已存分析，返回最新一条的 ID
	Exists(ctx context.Context, q model.MatchQuery) (bool, int64, error)
	// Load 读取分析结果
	Load(ctx context.Context, id int64) (*model.AnalysisResult, error)
	// Get 读取带概要信息的完整记录
	Get(ctx context.Context, id int64) (*storage.Record, error)
	// Store 写入新记录
	Store(ctx context.Context, q model.MatchQuery, res *model.AnalysisResult, meta storage.Meta) (int64, error)
	// List 按时间倒序分页
	List(ctx context.Context, limit, offset int) ([]storage.Summary, error)
}
