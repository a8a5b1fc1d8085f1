package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/cityvoice/internal/config"
	"github.com/shenikar/cityvoice/internal/webhook"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		timeout time.Duration
		want    string
	}{
		{"postgres scheme", "postgres://u:p@db:5432/cityvoice?sslmode=disable", 5 * time.Second,
			"pgx5://u:p@db:5432/cityvoice?connect_timeout=5&sslmode=disable"},
		{"postgresql scheme", "postgresql://u:p@db/cityvoice", 3 * time.Second,
			"pgx5://u:p@db/cityvoice?connect_timeout=3"},
		{"fractional timeout rounds up", "postgres://db/cityvoice", 1500 * time.Millisecond,
			"pgx5://db/cityvoice?connect_timeout=2"},
		{"explicit timeout kept", "postgres://db/cityvoice?connect_timeout=1", 5 * time.Second,
			"pgx5://db/cityvoice?connect_timeout=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migrationURL(tt.dsn, tt.timeout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := migrationURL("mysql://db/cityvoice", time.Second)
	assert.ErrorContains(t, err, "unsupported DATABASE_URL scheme")
}

func TestOpenStores_UnreachablePostgresFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{
		// Нерутируемый адрес: соединение не устанавливается и не отклоняется
		DatabaseURL:      "postgres://u:p@10.255.255.1:5432/cityvoice",
		MigrationsPath:   "file://does-not-exist",
		DBConnectTimeout: 300 * time.Millisecond,
	}

	start := time.Now()
	st := openStores(context.Background(), cfg, quietLogger())
	defer st.close()

	assert.Equal(t, "memory", st.name)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestNewEventPublishers(t *testing.T) {
	// Клиент не подключается до первой команды
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	t.Run("no redis", func(t *testing.T) {
		pubs := newEventPublishers(context.Background(), &config.Config{WebhookURL: "http://hook"}, nil, quietLogger())
		assert.Empty(t, pubs)
	})

	t.Run("redis without webhook url skips the queue", func(t *testing.T) {
		pubs := newEventPublishers(context.Background(), &config.Config{}, client, quietLogger())
		assert.Empty(t, pubs)
	})

	t.Run("redis with webhook url", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // воркер завершается сразу

		pubs := newEventPublishers(ctx, &config.Config{WebhookURL: "http://hook", WebhookTimeout: time.Second}, client, quietLogger())
		require.Len(t, pubs, 1)
		assert.IsType(t, &webhook.RedisWebhookPublisher{}, pubs[0])
	})
}
