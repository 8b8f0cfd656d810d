package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
)

const keyPrefix = "match_radar:lock:"

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 仍由自己持有时续期
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis 多实例部署时的分布式锁，SET NX PX + 令牌校验释放。
// 持锁期间后台按 TTL 的三分之一续期，流水线耗时超过 TTL 也不会丢锁
type Redis struct {
	rdb  *redis.Client
	ttl  time.Duration
	poll time.Duration
	log  *logrus.Entry
}

// NewRedis 连接 Redis 并创建锁
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		rdb:  rdb,
		ttl:  ttl,
		poll: 200 * time.Millisecond,
		log:  logger.Component("guard"),
	}, nil
}

// Lock 实现 Locker。持有者崩溃后停止续期，锁在 TTL 后自动过期
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	k := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(k, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{k}, token).Err(); err != nil {
				r.log.Warnf("释放锁失败 [%s]: %v", key, err)
			}
		})
	}, nil
}

func (r *Redis) keepAlive(k, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(refreshInterval(r.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := refreshScript.Run(ctx, r.rdb, []string{k}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				r.log.Warnf("锁续期失败 [%s]: %v", k, err)
				continue
			}
			if n == 0 {
				r.log.Warnf("锁已丢失 [%s]", k)
				return
			}
		}
	}
}

func refreshInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d > 0 {
		return d
	}
	return time.Second
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.rdb.Close()
}
