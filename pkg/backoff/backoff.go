// Package backoff 提供指數退避 (含 jitter) 與可取消的 sleep，用於有上限的重試。
package backoff

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const maxShift = 62

// Exponential 回傳 base * 2^attempt，溢位時回傳最大值
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}
	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

// FullJitter 回傳 [0, delay) 之間的隨機時間
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// ExponentialWithJitter 指數退避 + full jitter
func ExponentialWithJitter(base time.Duration, attempt int) time.Duration {
	return FullJitter(Exponential(base, attempt))
}

// SleepWithContext 睡眠指定時間，ctx 取消時提早回傳錯誤
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}

// Retry 執行 fn 最多 attempts 次，每次失敗後以指數退避等待
//
// 參數:
//
//	ctx: 上下文，取消時停止重試
//	attempts: 最多嘗試次數 (<= 0 視為 1)
//	base: 第一次退避的基準時間
//	fn: 要執行的動作
//
// 回傳:
//
//	error: 最後一次的錯誤，或 ctx 的錯誤
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if sleepErr := SleepWithContext(ctx, ExponentialWithJitter(base, i-1)); sleepErr != nil {
				return fmt.Errorf("%w (last error: %v)", sleepErr, err)
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
