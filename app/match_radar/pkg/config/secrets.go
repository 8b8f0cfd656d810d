package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Secrets 从环境变量读取的敏感配置，非空时覆盖配置文件
type Secrets struct {
	LLMAPIKey     string `envconfig:"LLM_API_KEY"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	TavilyAPIKey  string `envconfig:"TAVILY_API_KEY"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	JWTKey        string `envconfig:"JWT_KEY"`
}

// LoadSecrets 先加载 .env 文件（不存在则忽略），再读取环境变量
func LoadSecrets(envFiles ...string) (Secrets, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Secrets{}, fmt.Errorf("load env file: %w", err)
	}

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return Secrets{}, fmt.Errorf("process env: %w", err)
	}
	return s, nil
}

// ApplySecrets 用环境变量覆盖配置
func (c *Config) ApplySecrets(s Secrets) {
	if s.LLMAPIKey != "" {
		c.LLM.APIKey = s.LLMAPIKey
	}
	if s.OpenAIAPIKey != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = s.OpenAIAPIKey
		}
		c.Memory.APIKey = s.OpenAIAPIKey
	}
	if s.TavilyAPIKey != "" {
		c.Search.Tavily.APIKey = s.TavilyAPIKey
	}
	if s.DatabaseURL != "" {
		c.DB.DSN = s.DatabaseURL
	}
	if s.RedisPassword != "" {
		c.Redis.Password = s.RedisPassword
	}
}
