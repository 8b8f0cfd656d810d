package memory

import (
	"context"
	"strings"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// DefaultUserID 未登录用户，不写入长期记忆
const DefaultUserID = "default_user"

// DefaultListLimit 列出记忆时的默认条数
const DefaultListLimit = 20

// IsAnonymous 是否为匿名用户
func IsAnonymous(userID string) bool {
	id := strings.TrimSpace(userID)
	return id == "" || id == DefaultUserID
}

// Store 按用户隔离的长期记忆
type Store interface {
	Add(ctx context.Context, rec model.MemoryRecord) error
	// Search 按语义相关度返回至多 limit 条
	Search(ctx context.Context, userID, query string, limit int) ([]model.MemoryRecord, error)
	// All 按时间倒序返回至多 limit 条
	All(ctx context.Context, userID string, limit int) ([]model.MemoryRecord, error)
}

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embeddingText 参与向量化的文本
func embeddingText(rec model.MemoryRecord) string {
	parts := []string{rec.Query, rec.Response}
	if rec.Match != "" {
		parts = append(parts, rec.Match)
	}
	if rec.League != "" {
		parts = append(parts, rec.League)
	}
	return strings.Join(parts, "\n")
}
