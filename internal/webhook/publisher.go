package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/cityvoice/internal/models"
)

const (
	issueEventsQueueKey = "issue_events"
)

type EventType string

const (
	EventIssueCreated       EventType = "issue.created"
	EventIssueStatusChanged EventType = "issue.status_changed"
	EventIssueVoted         EventType = "issue.voted"
)

// IssueEvent - событие жизненного цикла обращения
type IssueEvent struct {
	Type      EventType          `json:"type"`
	IssueID   uuid.UUID          `json:"issue_id"`
	ActorID   uuid.UUID          `json:"actor_id"`
	Status    models.IssueStatus `json:"status,omitempty"`
	Votes     int                `json:"votes"`
	Timestamp time.Time          `json:"timestamp"`
	Issue     *models.Issue      `json:"issue,omitempty"`
}

// WebhookPublisher - интерфейс для публикации событий
type WebhookPublisher interface {
	Publish(ctx context.Context, event IssueEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая очередь Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event IssueEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal issue event: %w", err)
	}

	// LPUSH в левую часть списка, воркер забирает справа через BRPOP
	if err := p.redisClient.LPush(ctx, issueEventsQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish issue event to Redis: %w", err)
	}
	return nil
}

// NoopPublisher используется, когда Redis не настроен
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, IssueEvent) error { return nil }

// MultiPublisher рассылает событие всем получателям и объединяет ошибки
type MultiPublisher []WebhookPublisher

func (m MultiPublisher) Publish(ctx context.Context, event IssueEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
