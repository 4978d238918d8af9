package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context) bool
}

// TokenBucket 令牌桶限流器，挂在预订等写接口前面，
// 防止表单重复提交/脚本刷单把重叠检查的事务打满。
type TokenBucket struct {
	capacity   int64      // 桶容量
	tokens     int64      // 当前令牌数
	refillRate int64      // 每秒补充的令牌数
	lastRefill time.Time  // 上次补充时间
	mu         sync.Mutex // 锁
}

// NewTokenBucket 创建令牌桶
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow(ctx context.Context) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	// 补充令牌
	tokensToAdd := int64(elapsed * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens = minInt64(tb.tokens+tokensToAdd, tb.capacity)
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// RateLimit 把限流器包装成 HTTP middleware，超限返回 429。
func RateLimit(limiter RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow(r.Context()) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
