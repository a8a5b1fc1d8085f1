package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/cityvoice/internal/config"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/ratelimit"
	"github.com/shenikar/cityvoice/internal/repository"
	"github.com/shenikar/cityvoice/internal/service"
	"github.com/shenikar/cityvoice/internal/storage"
	"github.com/shenikar/cityvoice/internal/webhook"
	"github.com/shenikar/cityvoice/pkg/mongo"
	"github.com/shenikar/cityvoice/pkg/postgres"
	redisclient "github.com/shenikar/cityvoice/pkg/redis"
)

// stores - выбранное хранилище обращений и пользователей
type stores struct {
	name   string
	issues service.IssueRepository
	users  service.UserRepository
	close  func()
}

// migrationURL переводит DSN на драйвер pgx5 для migrate и ограничивает
// время подключения тем же таймаутом, что и основной пул
func migrationURL(dsn string, timeout time.Duration) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}

	q := u.Query()
	if q.Get("connect_timeout") == "" && timeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(math.Ceil(timeout.Seconds()))))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	dbURL, err := migrationURL(cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		return err
	}

	m, err := migrate.New(cfg.MigrationsPath, dbURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// openStores пробует PostgreSQL, затем MongoDB, затем память
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) *stores {
	if cfg.DatabaseURL != "" {
		s, err := openPostgres(ctx, cfg, log)
		if err == nil {
			return s
		}
		log.WithError(err).Warn("PostgreSQL unavailable, trying next store")
	}

	if cfg.MongoURI != "" {
		s, err := openMongo(ctx, cfg)
		if err == nil {
			log.Info("Successfully connected to MongoDB")
			return s
		}
		log.WithError(err).Warn("MongoDB unavailable, falling back to in-memory store")
	}

	var seed []*models.Issue
	if cfg.SeedDemoData {
		seed = repository.SampleIssues(time.Now().UTC())
	}
	log.WithField("seeded", len(seed)).Warn("Using in-memory store, data will be lost on restart")
	return &stores{
		name:   "memory",
		issues: repository.NewMemoryIssueRepository(seed...),
		users:  repository.NewMemoryUserRepository(),
		close:  func() {},
	}
}

// openPostgres сначала проверяет доступность за DB_CONNECT_TIMEOUT, затем мигрирует
func openPostgres(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stores, error) {
	dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(cfg, log); err != nil {
		dbpool.Close()
		return nil, err
	}
	log.Info("Successfully connected to PostgreSQL")
	return &stores{
		name:   "postgres",
		issues: repository.NewPostgresIssueRepository(dbpool),
		users:  repository.NewPostgresUserRepository(dbpool),
		close:  dbpool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*stores, error) {
	db, err := mongo.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.DBConnectTimeout)
	if err != nil {
		return nil, err
	}
	disconnect := func() { _ = db.Client().Disconnect(context.Background()) }

	issues := repository.NewMongoIssueRepository(db)
	users := repository.NewMongoUserRepository(db)
	indexCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()
	if err := issues.EnsureIndexes(indexCtx); err != nil {
		disconnect()
		return nil, err
	}
	if err := users.EnsureIndexes(indexCtx); err != nil {
		disconnect()
		return nil, err
	}
	return &stores{name: "mongodb", issues: issues, users: users, close: disconnect}, nil
}

// openRedis возвращает nil, если Redis не настроен или недоступен
func openRedis(ctx context.Context, cfg *config.Config, log *logrus.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, cache and webhook delivery disabled")
		return nil
	}
	client, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, cache and webhook delivery disabled")
		return nil
	}
	log.Info("Successfully connected to Redis")
	return client
}

// newEventPublishers собирает получателей событий обращений. Очередь вебхуков
// в Redis используется только вместе с воркером, который ее разбирает
func newEventPublishers(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log *logrus.Logger) webhook.MultiPublisher {
	publishers := webhook.MultiPublisher{}
	if redisClient == nil {
		return publishers
	}
	if cfg.WebhookURL == "" {
		log.Info("WEBHOOK_URL not set, webhook delivery disabled")
		return publishers
	}
	publishers = append(publishers, webhook.NewRedisWebhookPublisher(redisClient))
	webhook.NewWebhookWorker(redisClient, log, cfg).Start(ctx)
	return publishers
}

// newLimiter выбирает общий ограничитель в Redis или локальный в памяти
func newLimiter(ctx context.Context, cfg *config.Config, redisClient *redis.Client) ratelimit.Limiter {
	if redisClient != nil {
		return ratelimit.NewRedisLimiter(redisClient, "ratelimit:issues", cfg.IssueRateLimit, cfg.IssueRateWindow)
	}
	limiter := ratelimit.NewMemoryLimiter(cfg.IssueRateLimit, cfg.IssueRateWindow)
	limiter.StartCleanup(ctx, 10*time.Minute)
	return limiter
}

// newUploader возвращает хранилище файлов и функцию его закрытия
func newUploader(ctx context.Context, cfg *config.Config) (storage.Uploader, string, func(), error) {
	switch cfg.UploadBackend {
	case "gcs":
		uploader, err := storage.NewGCSUploader(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, "", nil, err
		}
		return uploader, "", func() { _ = uploader.Close() }, nil
	default:
		uploader, err := storage.NewLocalUploader(cfg.UploadDir, "/uploads")
		if err != nil {
			return nil, "", nil, err
		}
		return uploader, uploader.Dir(), func() {}, nil
	}
}
