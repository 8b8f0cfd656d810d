package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/markup"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// ErrNotFound 分析记录不存在
var ErrNotFound = errors.New("analysis not found")

// StatusDraft 新记录的发布状态
const StatusDraft = "draft"

// Storage 分析结果缓存，记录同时保存可发布的文章标记和原始 JSON
type Storage struct {
	db           *sqlx.DB
	strictLeague bool
	log          *logrus.Entry
}

// Option 存储选项
type Option func(*Storage)

// WithStrictLeague 缓存键是否包含联赛
func WithStrictLeague(strict bool) Option {
	return func(s *Storage) { s.strictLeague = strict }
}

// Meta 写入时附带的外部 ID，零值存为 NULL
type Meta struct {
	HomeTeamID int64
	AwayTeamID int64
	LeagueID   int64
	MatchID    int64
	Status     string
}

// Summary 列表展示用的记录概要
type Summary struct {
	ID           int64  `db:"id" json:"id"`
	Title        string `db:"title" json:"title"`
	Slug         string `db:"slug" json:"slug"`
	HomeTeam     string `db:"home_team" json:"home_team"`
	AwayTeam     string `db:"away_team" json:"away_team"`
	League       string `db:"league" json:"league"`
	MatchDate    string `db:"match_date" json:"match_date"`
	AnalysisDate string `db:"analysis_date" json:"analysis_date"`
	Status       string `db:"status" json:"status"`
}

// Query 还原比赛查询
func (s Summary) Query() (model.MatchQuery, error) {
	return model.ParseMatchQuery(s.HomeTeam, s.AwayTeam, s.League, s.MatchDate)
}

// Record 完整记录
type Record struct {
	Summary
	Result *model.AnalysisResult
}

type row struct {
	Summary
	Content    string         `db:"content"`
	RawContent sql.NullString `db:"raw_content"`
}

// New 创建存储并初始化表结构
func New(ctx context.Context, db *sqlx.DB, opts ...Option) (*Storage, error) {
	s := &Storage{db: db, log: logger.Component("storage")}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Storage) initSchema(ctx context.Context) error {
	id, bigint := "BIGSERIAL PRIMARY KEY", "BIGINT"
	if s.db.DriverName() == DriverSQLite {
		id, bigint = "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER"
	}
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS analyses (
			id %s,
			title TEXT NOT NULL,
			slug TEXT NOT NULL,
			content TEXT NOT NULL,
			raw_content TEXT,
			home_team TEXT NOT NULL,
			away_team TEXT NOT NULL,
			league TEXT NOT NULL DEFAULT '',
			home_key TEXT NOT NULL,
			away_key TEXT NOT NULL,
			league_key TEXT NOT NULL DEFAULT '',
			home_team_id %[2]s,
			away_team_id %[2]s,
			league_id %[2]s,
			match_id %[2]s,
			match_date TEXT NOT NULL,
			analysis_date TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			seo_title TEXT,
			seo_description TEXT,
			tags TEXT,
			categories TEXT
		)`, id, bigint),
		`CREATE INDEX IF NOT EXISTS idx_analyses_match ON analyses (home_key, away_key, match_date)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Exists 查找同一场比赛的最新记录
func (s *Storage) Exists(ctx context.Context, q model.MatchQuery) (bool, int64, error) {
	query := `SELECT id FROM analyses WHERE home_key = ? AND away_key = ? AND match_date = ?`
	args := []any{model.NormalizeTeam(q.HomeTeam), model.NormalizeTeam(q.AwayTeam), q.DateString()}
	if s.strictLeague {
		query += ` AND league_key = ?`
		args = append(args, model.NormalizeTeam(q.League))
	}
	query += ` ORDER BY id DESC LIMIT 1`

	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("lookup analysis %s: %w", q.Key(), err)
	}
	return true, id, nil
}

// Load 读取分析结果
func (s *Storage) Load(ctx context.Context, id int64) (*model.AnalysisResult, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Result, nil
}

// Get 读取完整记录。优先使用 raw_content，
// 缺失或损坏时从文章标记还原正文，还原失败则原样返回标记
func (s *Storage) Get(ctx context.Context, id int64) (*Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT id, title, slug, home_team, away_team, league,
		match_date, analysis_date, status, content, raw_content FROM analyses WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis %d: %w", id, err)
	}
	return &Record{Summary: r.Summary, Result: s.decode(r)}, nil
}

func (s *Storage) decode(r row) *model.AnalysisResult {
	if r.RawContent.Valid && strings.TrimSpace(r.RawContent.String) != "" {
		var res model.AnalysisResult
		err := json.Unmarshal([]byte(r.RawContent.String), &res)
		if err == nil {
			return &res
		}
		s.log.Warnf("记录 %d 的 raw_content 无法解析，改用文章内容: %v", r.ID, err)
	}

	text, err := markup.Strip(r.Content)
	if err != nil || text == "" {
		s.log.Warnf("记录 %d 的文章内容无法解析，返回原始内容", r.ID)
		return &model.AnalysisResult{EnhancedAnalysis: r.Content}
	}
	return &model.AnalysisResult{
		EnhancedAnalysis: text,
		BettingInsights:  markup.ExtractBettingInsights(text).BetInfos(),
	}
}

// Store 写入一条新记录并返回 ID，同一场比赛允许存在多条记录
func (s *Storage) Store(ctx context.Context, q model.MatchQuery, res *model.AnalysisResult, meta Meta) (int64, error) {
	content, err := markup.Render(q, res)
	if err != nil {
		return 0, fmt.Errorf("render analysis: %w", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("encode analysis: %w", err)
	}
	tags, _ := json.Marshal(tagsOf(q))
	categories, _ := json.Marshal(categoriesOf(q))

	status := meta.Status
	if status == "" {
		status = StatusDraft
	}
	title := fmt.Sprintf("%s Match Analysis and Prediction - %s", q.Title(), q.Date.Format("02 January 2006"))

	var id int64
	err = s.db.GetContext(ctx, &id, s.db.Rebind(`INSERT INTO analyses (
			title, slug, content, raw_content, home_team, away_team, league,
			home_key, away_key, league_key, home_team_id, away_team_id, league_id, match_id,
			match_date, analysis_date, status, seo_title, seo_description, tags, categories
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		title, q.Slug(), Sanitize(content), Sanitize(string(raw)),
		q.HomeTeam, q.AwayTeam, q.League,
		model.NormalizeTeam(q.HomeTeam), model.NormalizeTeam(q.AwayTeam), model.NormalizeTeam(q.League),
		nullID(meta.HomeTeamID), nullID(meta.AwayTeamID), nullID(meta.LeagueID), nullID(meta.MatchID),
		q.DateString(), time.Now().UTC().Format(time.RFC3339), status,
		title, seoDescription(q), string(tags), string(categories),
	)
	if err != nil {
		return 0, fmt.Errorf("store analysis %s: %w", q.Key(), err)
	}
	s.log.Infof("分析已保存 [%s] id=%d", q.Title(), id)
	return id, nil
}

// List 按时间倒序列出记录概要
func (s *Storage) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Summary
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`SELECT id, title, slug, home_team, away_team, league,
		match_date, analysis_date, status FROM analyses ORDER BY id DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

func tagsOf(q model.MatchQuery) []string {
	tags := []string{q.HomeTeam, q.AwayTeam}
	if q.League != "" {
		tags = append(tags, q.League)
	}
	return append(tags, "Match Analysis", "Football Prediction", "Betting Tips")
}

func categoriesOf(q model.MatchQuery) []string {
	cats := []string{"Football Analysis"}
	if q.League != "" {
		cats = append(cats, q.League)
	}
	return append(cats, "Match Predictions")
}

func seoDescription(q model.MatchQuery) string {
	league := q.League
	if league == "" {
		league = "football"
	}
	return fmt.Sprintf("Expert analysis and prediction for the %s match between %s on %s. Get betting insights and tactical breakdown.",
		league, q.Title(), q.Date.Format("02 January 2006"))
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
