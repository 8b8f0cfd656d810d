package retry

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// Policy 外部调用的统一重试策略：指数退避，次数有上限
type Policy struct {
	// Attempts 总尝试次数（含首次），<=0 视为 1
	Attempts int
	Min      time.Duration
	Max      time.Duration
	// Retryable 为 nil 时所有错误都重试
	Retryable func(error) bool
	// OnRetry 每次重试前回调，可用于日志
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Default 基准 2s，最多 3 次尝试
func Default() Policy {
	return Policy{Attempts: 3, Min: 2 * time.Second, Max: 30 * time.Second}
}

// Do 执行 fn，失败且可重试时按退避等待后再试，返回最后一次错误
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: 2}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}

		wait := b.Duration()
		if p.OnRetry != nil {
			p.OnRetry(i+1, wait, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
