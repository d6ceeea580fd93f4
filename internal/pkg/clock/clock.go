/**
 * 可注入的休眠
 * @author: sun977
 * @date: 2026.10.14
 * @description: 主循环的退避休眠，可被 context 取消; 测试中替换为 Fake
 * @func: Sleeper, Real, Fake
 */
package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper 可取消的休眠
type Sleeper interface {
	// Sleep 休眠 d，ctx 取消时提前返回 ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

// Real 基于 time.Timer 的实现
func Real() Sleeper { return realSleeper{} }

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake 只记录休眠时长，不真正等待
type Fake struct {
	mu     sync.Mutex
	sleeps []time.Duration
	hook   func(n int, d time.Duration)
}

// NewFake hook 在每次休眠后调用，n 从 1 开始计数，可用于在第 n 次时取消 ctx
func NewFake(hook func(n int, d time.Duration)) *Fake {
	return &Fake{hook: hook}
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	n := len(f.sleeps)
	f.mu.Unlock()

	if f.hook != nil {
		f.hook(n, d)
	}
	return ctx.Err()
}

// Sleeps 已记录的休眠时长
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
