package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/retry"
)

// ErrEmptyCompletion 模型返回空内容
var ErrEmptyCompletion = errors.New("empty completion")

// Generator eino 对话模型中本包用到的部分
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client 带限流、超时与退避重试的补全客户端，文本进文本出
type Client struct {
	gen     Generator
	limiter *rate.Limiter
	timeout time.Duration
	policy  retry.Policy
	log     *logrus.Entry
}

// Options 客户端选项
type Options struct {
	Timeout time.Duration
	Limiter *rate.Limiter
	Retry   retry.Policy
}

// NewChatModel 按配置初始化 OpenAI 兼容的 eino 对话模型
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (*openai.ChatModel, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return cm, nil
}

// NewLimiter 由 RPM/QPS 配置构造限流器
func NewLimiter(c config.ConcurrencyConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(c.RPM)/60.0), c.QPS)
}

// NewClient 创建补全客户端，Retryable 未设置时只重试限流与超时类错误
func NewClient(gen Generator, opts Options) *Client {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = IsRetryable
	}
	c := &Client{
		gen:     gen,
		limiter: opts.Limiter,
		timeout: opts.Timeout,
		policy:  opts.Retry,
		log:     logger.Component("llm"),
	}
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			c.log.Warnf("补全调用失败，第 %d 次重试前等待 %s: %v", attempt, wait, err)
		}
	}
	return c
}

// Complete 发送消息并返回去除首尾空白的文本
func (c *Client) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	var content string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.gen.Generate(callCtx, messages)
		if err != nil {
			return err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return ErrEmptyCompletion
		}
		content = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// IsRetryable 限流(429)与超时视为可重试
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "timeout")
}

// Messages 组装 system + user 消息
func Messages(system, user string) []*schema.Message {
	var msgs []*schema.Message
	if system != "" {
		msgs = append(msgs, &schema.Message{Role: schema.System, Content: system})
	}
	return append(msgs, &schema.Message{Role: schema.User, Content: user})
}
