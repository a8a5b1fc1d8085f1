package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/service"
)

const issueCacheTTL = 5 * time.Minute

// RedisIssueCache кеширует отдельные обращения в Redis
type RedisIssueCache struct {
	redisClient *redis.Client
}

func NewRedisIssueCache(client *redis.Client) service.IssueCache {
	return &RedisIssueCache{redisClient: client}
}

func issueCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("issue:%s", id.String())
}

// Get пытается получить обращение из Redis
func (c *RedisIssueCache) Get(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	val, err := c.redisClient.Get(ctx, issueCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get issue from cache: %w", err)
	}

	issue := &models.Issue{}
	if err := json.Unmarshal(val, issue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issue from cache: %w", err)
	}
	return issue, nil
}

// Set сохраняет обращение в Redis на issueCacheTTL
func (c *RedisIssueCache) Set(ctx context.Context, issue *models.Issue) error {
	val, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("failed to marshal issue for cache: %w", err)
	}
	if err := c.redisClient.Set(ctx, issueCacheKey(issue.ID), val, issueCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set issue in cache: %w", err)
	}
	return nil
}

// Invalidate удаляет обращение из кеша
func (c *RedisIssueCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.redisClient.Del(ctx, issueCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate issue cache: %w", err)
	}
	return nil
}

// NoopIssueCache - кеш без хранения, когда Redis не настроен
type NoopIssueCache struct{}

func (NoopIssueCache) Get(context.Context, uuid.UUID) (*models.Issue, error) { return nil, nil }
func (NoopIssueCache) Set(context.Context, *models.Issue) error              { return nil }
func (NoopIssueCache) Invalidate(context.Context, uuid.UUID) error           { return nil }
