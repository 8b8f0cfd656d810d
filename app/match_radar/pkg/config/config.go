package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 项目配置结构体，既可由 kratos config 扫描（json 标签）也可直接 yaml 解析
type Config struct {
	LLM         LLMConfig         `json:"llm" yaml:"llm"`
	Search      SearchConfig      `json:"search" yaml:"search"`
	Log         LogConfig         `json:"log" yaml:"log"`
	Concurrency ConcurrencyConfig `json:"concurrency" yaml:"concurrency"`
	DB          DBConfig          `json:"db" yaml:"db"`
	Analysis    AnalysisConfig    `json:"analysis" yaml:"analysis"`
	Memory      MemoryConfig      `json:"memory" yaml:"memory"`
	Redis       RedisConfig       `json:"redis" yaml:"redis"`
	Kafka       KafkaConfig       `json:"kafka" yaml:"kafka"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	Model          string `json:"model" yaml:"model"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries" yaml:"max_retries"`
}

// Timeout 单次补全调用超时
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DBConfig 数据库相关配置，DSN 优先于分项配置
type DBConfig struct {
	Driver   string `json:"driver" yaml:"driver"` // postgres 或 sqlite
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name"`
}

// ConnString 返回驱动可用的连接串
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return c.Name
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Enabled 是否配置了数据库
func (c DBConfig) Enabled() bool {
	return c.DSN != "" || c.Name != ""
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider       string              `json:"provider" yaml:"provider"`
	MaxResults     int                 `json:"max_results" yaml:"max_results"`
	TimeoutSeconds int                 `json:"timeout_seconds" yaml:"timeout_seconds"`
	FetchFullText  bool                `json:"fetch_full_text" yaml:"fetch_full_text"`
	Tavily         TavilyConfig        `json:"tavily" yaml:"tavily"`
	SearXNG        SearXNGConfig       `json:"searxng" yaml:"searxng"`
	Elasticsearch  ElasticsearchConfig `json:"elasticsearch" yaml:"elasticsearch"`
	RSS            RSSConfig           `json:"rss" yaml:"rss"`
}

// Timeout 检索超时
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL  string `json:"base_url" yaml:"base_url"`
	Timeout  int    `json:"timeout" yaml:"timeout"`
	Language string `json:"language" yaml:"language"`
}

// ElasticsearchConfig 新闻归档索引配置
type ElasticsearchConfig struct {
	Addresses []string `json:"addresses" yaml:"addresses"`
	Index     string   `json:"index" yaml:"index"`
	Username  string   `json:"username" yaml:"username"`
	Password  string   `json:"password" yaml:"password"`
	// LookbackDays 只检索比赛日前若干天内的新闻
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`
}

// RSSConfig 订阅源配置
type RSSConfig struct {
	Feeds []string `json:"feeds" yaml:"feeds"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `json:"qps" yaml:"qps"`
	RPM int `json:"rpm" yaml:"rpm"`
}

// AnalysisConfig 分析流程配置
type AnalysisConfig struct {
	DisableNews  bool   `json:"disable_news" yaml:"disable_news"`
	DisableStats bool   `json:"disable_stats" yaml:"disable_stats"`
	StrictLeague bool   `json:"strict_league" yaml:"strict_league"`
	PromptsFile  string `json:"prompts_file" yaml:"prompts_file"`
	// SessionIdleMinutes 对话会话闲置回收时长
	SessionIdleMinutes int `json:"session_idle_minutes" yaml:"session_idle_minutes"`
}

// MemoryConfig 长期记忆配置，DSN 为空时复用主库
type MemoryConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	DSN            string `json:"dsn" yaml:"dsn"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`
	Dimensions     int    `json:"dimensions" yaml:"dimensions"`
}

// RedisConfig 分布式锁配置，Addr 为空时使用进程内锁
type RedisConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	Password       string `json:"password" yaml:"password"`
	DB             int    `json:"db" yaml:"db"`
	LockTTLSeconds int    `json:"lock_ttl_seconds" yaml:"lock_ttl_seconds"`
}

// KafkaConfig 分析事件配置，Brokers 为空时不发布
type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// Normalize 填充默认值
func (c *Config) Normalize() {
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 2
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 10
	}
	if c.Search.Elasticsearch.Index == "" {
		c.Search.Elasticsearch.Index = "football-news"
	}
	if c.Search.Elasticsearch.LookbackDays <= 0 {
		c.Search.Elasticsearch.LookbackDays = 14
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "postgres"
	}
	if c.Memory.EmbeddingModel == "" {
		c.Memory.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Memory.Dimensions <= 0 {
		c.Memory.Dimensions = 1536
	}
	if c.Analysis.SessionIdleMinutes <= 0 {
		c.Analysis.SessionIdleMinutes = 120
	}
	if c.Redis.LockTTLSeconds <= 0 {
		c.Redis.LockTTLSeconds = 300
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "match-analyses"
	}
}

// Validate 校验必填项
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported db driver: %s", c.DB.Driver))
	}
	if c.Analysis.DisableNews && c.Analysis.DisableStats {
		errs = append(errs, errors.New("news and stats cannot both be disabled"))
	}
	return errors.Join(errs...)
}
