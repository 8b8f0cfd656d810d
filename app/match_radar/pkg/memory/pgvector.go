package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// compile-time check
var _ Store = (*PGVectorStore)(nil)

// PGVectorStore 基于 PostgreSQL + pgvector 的记忆存储，按余弦距离检索
type PGVectorStore struct {
	db       *sqlx.DB
	embedder Embedder
	log      *logrus.Entry
}

type memoryRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Query     string    `db:"query"`
	Response  string    `db:"response"`
	Match     string    `db:"match_title"`
	League    string    `db:"league"`
	Date      string    `db:"match_date"`
	CreatedAt time.Time `db:"created_at"`
	Score     float64   `db:"score"`
}

func (r memoryRow) record() model.MemoryRecord {
	return model.MemoryRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		Query:     r.Query,
		Response:  r.Response,
		Match:     r.Match,
		League:    r.League,
		Date:      r.Date,
		Timestamp: r.CreatedAt,
		Score:     r.Score,
	}
}

// Open 按配置连接记忆库。未启用时返回 (nil, nil)，
// 连接或建表失败返回错误，由调用方决定降级
func Open(ctx context.Context, cfg config.MemoryConfig) (*PGVectorStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	embedder, err := NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping memory database: %w", err)
	}
	s, err := NewPGVectorStore(ctx, db, embedder, cfg.Dimensions)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPGVectorStore 创建存储并初始化表结构
func NewPGVectorStore(ctx context.Context, db *sqlx.DB, embedder Embedder, dimensions int) (*PGVectorStore, error) {
	s := &PGVectorStore{db: db, embedder: embedder, log: logger.Component("memory")}
	if err := s.initSchema(ctx, dimensions); err != nil {
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}
	return s, nil
}

func (s *PGVectorStore) initSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		dimensions = 1536
	}
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chat_memories (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			query TEXT NOT NULL,
			response TEXT NOT NULL,
			match_title TEXT NOT NULL DEFAULT '',
			league TEXT NOT NULL DEFAULT '',
			match_date TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			embedding vector(%d) NOT NULL
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_chat_memories_user ON chat_memories (user_id, created_at DESC)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Add 实现 Store
func (s *PGVectorStore) Add(ctx context.Context, rec model.MemoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	vec, err := s.embedder.Embed(ctx, embeddingText(rec))
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_memories (id, user_id, query, response, match_title, league, match_date, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.UserID, rec.Query, rec.Response, rec.Match, rec.League, rec.Date, rec.Timestamp,
		pgvector.NewVector(vec),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	s.log.Debugf("记忆已写入 user=%s id=%s", rec.UserID, rec.ID)
	return nil
}

// Search 实现 Store
func (s *PGVectorStore) Search(ctx context.Context, userID, query string, limit int) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var rows []memoryRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, query, response, match_title, league, match_date, created_at,
			1 - (embedding <=> $2) AS score
		FROM chat_memories
		WHERE user_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`, userID, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	return records(rows), nil
}

// All 实现 Store
func (s *PGVectorStore) All(ctx context.Context, userID string, limit int) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []memoryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, query, response, match_title, league, match_date, created_at, 0::float8 AS score
		FROM chat_memories
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return records(rows), nil
}

// Close 关闭连接
func (s *PGVectorStore) Close() error {
	return s.db.Close()
}

func records(rows []memoryRow) []model.MemoryRecord {
	out := make([]model.MemoryRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}
