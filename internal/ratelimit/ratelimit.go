package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter ограничивает число действий по ключу (обычно ID пользователя).
// Возвращает время ожидания, если действие отклонено
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RedisLimiter - фиксированное окно на SET NX EX + INCR, общее для всех инстансов
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter создает ограничитель; limit <= 0 отключает ограничение
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}
	userKey := l.prefix + ":" + key

	// SET NX EX открывает окно вместе с TTL, INCR его сохраняет.
	// Обе команды в одной транзакции, поэтому ключ без TTL не остается
	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, userKey, 0, l.window)
		count = pipe.Incr(ctx, userKey)
		ttl = pipe.TTL(ctx, userKey)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("redis error incrementing count: %w", err)
	}

	if count.Val() > int64(l.limit) {
		retryAfter := ttl.Val()
		if retryAfter <= 0 {
			retryAfter = l.window
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// MemoryLimiter - token bucket в памяти процесса: limit токенов,
// один токен восстанавливается каждые window/limit
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	limit   int
	refill  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		now:     time.Now,
	}
	if limit > 0 {
		l.refill = window / time.Duration(limit)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: l.limit, lastRefill: now}
		l.buckets[key] = bucket
	}

	if l.refill > 0 {
		if add := int(now.Sub(bucket.lastRefill) / l.refill); add > 0 {
			bucket.tokens += add
			if bucket.tokens > l.limit {
				bucket.tokens = l.limit
			}
			bucket.lastRefill = bucket.lastRefill.Add(time.Duration(add) * l.refill)
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true, 0, nil
	}
	return false, bucket.lastRefill.Add(l.refill).Sub(now), nil
}

// Cleanup удаляет полностью восстановленные корзины
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, bucket := range l.buckets {
		if l.refill > 0 && now.Sub(bucket.lastRefill) >= time.Duration(l.limit)*l.refill {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup периодически чистит корзины до отмены контекста
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
