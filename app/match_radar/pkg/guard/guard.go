package guard

import (
	"context"
	"sync"
)

// Unlock 释放锁，重复调用无副作用
type Unlock func()

// Locker 按键互斥：同一场比赛的查找、计算、保存在持锁期间完成
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Local 进程内按键互斥锁，等待可被 ctx 取消
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal 创建进程内锁
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock 实现 Locker
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// pending 当前持有或等待的键数
func (l *Local) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
