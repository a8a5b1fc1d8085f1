package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/service/mocks"
	"github.com/shenikar/cityvoice/internal/webhook"
	webhook_mocks "github.com/shenikar/cityvoice/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// newTestIssueService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIssueService(t *testing.T) (*issueService, *mocks.MockIssueRepository, *mocks.MockIssueCache, *webhook_mocks.MockWebhookPublisher) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockIssueRepository(ctrl)
	cacheMock := mocks.NewMockIssueCache(ctrl)
	webhookMock := webhook_mocks.NewMockWebhookPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := NewIssueService(repoMock, cacheMock, webhookMock, logger).(*issueService)
	svc.now = func() time.Time { return fixedNow }
	return svc, repoMock, cacheMock, webhookMock
}

func validIssue() *models.Issue {
	reporter := uuid.New()
	return &models.Issue{
		Title:       "Pothole",
		Description: "d",
		Category:    "Potholes",
		Location:    models.Location{Latitude: 15.49, Longitude: 73.82},
		ReportedBy:  &reporter,
	}
}

func TestCreateIssue_Success(t *testing.T) {
	// Подготовка
	service, repoMock, _, webhookMock := newTestIssueService(t)
	ctx := context.Background()
	issue := validIssue()
	issue.Votes = 7 // клиентские счетчики игнорируются

	// Ожидания
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, stored *models.Issue) error {
			// В хранилище попадает уже заполненная запись
			assert.NotEqual(t, uuid.Nil, stored.ID)
			assert.Equal(t, models.StatusPending, stored.Status)
			assert.Equal(t, int64(1), stored.Version)
			return nil
		}).Times(1)

	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.IssueEvent) {
			assert.Equal(t, webhook.EventIssueCreated, event.Type)
			assert.Equal(t, *issue.ReportedBy, event.ActorID)
			assert.Equal(t, fixedNow, event.Timestamp)
		}).Return(nil).Times(1)

	// Действие
	err := service.CreateIssue(ctx, issue)

	// Проверки
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, issue.ID)
	assert.Equal(t, models.StatusPending, issue.Status)
	assert.Zero(t, issue.Votes)
	assert.Zero(t, issue.Comments)
	assert.Equal(t, fixedNow, issue.CreatedAt)
	assert.Equal(t, fixedNow, issue.UpdatedAt)
	assert.NotNil(t, issue.Images)
}

func TestCreateIssue_AssignsUniqueIDs(t *testing.T) {
	service, repoMock, _, webhookMock := newTestIssueService(t)
	ctx := context.Background()

	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(2)
	webhookMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(2)

	first, second := validIssue(), validIssue()
	require.NoError(t, service.CreateIssue(ctx, first))
	require.NoError(t, service.CreateIssue(ctx, second))

	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateIssue_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Issue)
		msg    string
	}{
		{"missing title", func(i *models.Issue) { i.Title = "   " }, "title is required"},
		{"long title", func(i *models.Issue) { i.Title = string(make([]byte, 201)) }, "title must be at most"},
		{"missing description", func(i *models.Issue) { i.Description = "" }, "description is required"},
		{"missing category", func(i *models.Issue) { i.Category = "" }, "category is required"},
		{"latitude out of range", func(i *models.Issue) { i.Location.Latitude = 91 }, "location coordinates"},
		{"longitude out of range", func(i *models.Issue) { i.Location.Longitude = -181 }, "location coordinates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repoMock, _, webhookMock := newTestIssueService(t)
			issue := validIssue()
			tt.mutate(issue)

			// Хранилище и публикатор не вызываются
			repoMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
			webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

			err := service.CreateIssue(context.Background(), issue)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestCreateIssue_MultibyteLengthsCountCharacters(t *testing.T) {
	service, repoMock, _, webhookMock := newTestIssueService(t)
	issue := validIssue()
	// 150 символов, но 300 байт
	issue.Title = strings.Repeat("é", 150)
	issue.Description = strings.Repeat("रस्ता", 400)

	repoMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	require.NoError(t, service.CreateIssue(context.Background(), issue))
	assert.Equal(t, strings.Repeat("é", 150), issue.Title)
}

func TestValidateIssue_MultibyteOverLimit(t *testing.T) {
	issue := validIssue()
	issue.Title = strings.Repeat("é", 201)

	err := ValidateIssue(issue)

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "title must be at most 200 characters")
}

func TestCreateIssue_RepositoryError(t *testing.T) {
	service, repoMock, _, webhookMock := newTestIssueService(t)
	ctx := context.Background()

	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("connection refused")).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	err := service.CreateIssue(ctx, validIssue())

	require.Error(t, err)
	assert.ErrorContains(t, err, "could not create issue")
}

func TestCreateIssue_PublishErrorIgnored(t *testing.T) {
	service, repoMock, _, webhookMock := newTestIssueService(t)
	ctx := context.Background()

	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	webhookMock.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("redis down")).Times(1)

	err := service.CreateIssue(ctx, validIssue())

	require.NoError(t, err)
}

func TestGetIssue_Success_FromCache(t *testing.T) {
	// Подготовка
	service, repoMock, cacheMock, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	expected := &models.Issue{ID: issueID, Title: "Из кеша"}

	// Ожидания
	cacheMock.EXPECT().Get(ctx, issueID).Return(expected, nil).Times(1)
	repoMock.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	issue, err := service.GetIssue(ctx, issueID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_Success_FromRepository(t *testing.T) {
	// Подготовка
	service, repoMock, cacheMock, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	expected := &models.Issue{ID: issueID, Title: "Из БД"}

	// Ожидания
	// 1. Промах кеша
	cacheMock.EXPECT().Get(ctx, issueID).Return(nil, nil).Times(1)
	// 2. Попадание в БД
	repoMock.EXPECT().GetByID(ctx, issueID).Return(expected, nil).Times(1)
	// 3. Запись в кеш
	cacheMock.EXPECT().Set(ctx, expected).Return(nil).Times(1)

	// Действие
	issue, err := service.GetIssue(ctx, issueID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_CacheErrorFallsBackToRepository(t *testing.T) {
	service, repoMock, cacheMock, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	expected := &models.Issue{ID: issueID}

	cacheMock.EXPECT().Get(ctx, issueID).Return(nil, errors.New("redis timeout")).Times(1)
	repoMock.EXPECT().GetByID(ctx, issueID).Return(expected, nil).Times(1)
	cacheMock.EXPECT().Set(ctx, expected).Return(errors.New("redis timeout")).Times(1)

	issue, err := service.GetIssue(ctx, issueID)

	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_NotFound(t *testing.T) {
	// Подготовка
	service, repoMock, cacheMock, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	// Ожидания
	cacheMock.EXPECT().Get(ctx, issueID).Return(nil, nil).Times(1)
	repoMock.EXPECT().GetByID(ctx, issueID).Return(nil, ErrIssueNotFound).Times(1)

	// Действие
	issue, err := service.GetIssue(ctx, issueID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, issue)
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestUpdateIssueStatus_Success(t *testing.T) {
	// Подготовка
	service, repoMock, cacheMock, webhookMock := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	actor := models.Identity{UserID: uuid.New(), Role: models.RoleModerator}
	updated := &models.Issue{ID: issueID, Status: models.StatusInProgress, Version: 2}

	// Ожидания
	// Устаревшее написание нормализуется до записи
	repoMock.EXPECT().UpdateStatus(ctx, issueID, models.StatusInProgress, int64(0)).Return(updated, nil).Times(1)
	cacheMock.EXPECT().Invalidate(ctx, issueID).Return(nil).Times(1)
	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.IssueEvent) {
			assert.Equal(t, webhook.EventIssueStatusChanged, event.Type)
			assert.Equal(t, models.StatusInProgress, event.Status)
			assert.Equal(t, actor.UserID, event.ActorID)
		}).Return(nil).Times(1)

	// Действие
	issue, err := service.UpdateIssueStatus(ctx, issueID, "In Progress", 0, actor)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, updated, issue)
}

func TestUpdateIssueStatus_UnknownStatus(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)

	repoMock.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	issue, err := service.UpdateIssueStatus(context.Background(), uuid.New(), "closed", 0, models.Identity{})

	require.Error(t, err)
	assert.Nil(t, issue)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateIssueStatus_NotFound(t *testing.T) {
	// Подготовка
	service, repoMock, cacheMock, webhookMock := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	// Ожидания
	repoMock.EXPECT().UpdateStatus(ctx, issueID, models.StatusResolved, int64(0)).Return(nil, ErrIssueNotFound).Times(1)
	cacheMock.EXPECT().Invalidate(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	issue, err := service.UpdateIssueStatus(ctx, issueID, "resolved", 0, models.Identity{})

	// Проверки
	require.Error(t, err)
	assert.Nil(t, issue)
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestUpdateIssueStatus_VersionConflict(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	repoMock.EXPECT().UpdateStatus(ctx, issueID, models.StatusResolved, int64(3)).Return(nil, ErrVersionConflict).Times(1)

	_, err := service.UpdateIssueStatus(ctx, issueID, "resolved", 3, models.Identity{})

	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestToggleVote_Success(t *testing.T) {
	service, repoMock, cacheMock, webhookMock := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()
	actor := models.Identity{UserID: uuid.New(), Role: models.RoleCitizen}

	repoMock.EXPECT().ToggleVote(ctx, issueID, actor.UserID).Return(true, 4, nil).Times(1)
	cacheMock.EXPECT().Invalidate(ctx, issueID).Return(nil).Times(1)
	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.IssueEvent) {
			assert.Equal(t, webhook.EventIssueVoted, event.Type)
			assert.Equal(t, 4, event.Votes)
		}).Return(nil).Times(1)

	result, err := service.ToggleVote(ctx, issueID, actor)

	require.NoError(t, err)
	assert.Equal(t, &models.VoteResult{IssueID: issueID, Voted: true, Votes: 4}, result)
}

func TestToggleVote_NotFound(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	issueID := uuid.New()

	repoMock.EXPECT().ToggleVote(ctx, issueID, gomock.Any()).Return(false, 0, ErrIssueNotFound).Times(1)

	result, err := service.ToggleVote(ctx, issueID, models.Identity{UserID: uuid.New()})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestListIssues_FilterAndSort(t *testing.T) {
	// Подготовка
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	older := &models.Issue{ID: uuid.New(), Category: "Garbage", Status: models.StatusPending, Votes: 9, CreatedAt: fixedNow.Add(-time.Hour)}
	newer := &models.Issue{ID: uuid.New(), Category: "Garbage", Status: models.StatusPending, Votes: 1, CreatedAt: fixedNow}
	other := &models.Issue{ID: uuid.New(), Category: "Potholes", Status: models.StatusResolved, Votes: 3, CreatedAt: fixedNow}
	all := []*models.Issue{older, newer, other}

	repoMock.EXPECT().List(ctx).DoAndReturn(func(context.Context) ([]*models.Issue, error) {
		return append([]*models.Issue(nil), all...), nil
	}).AnyTimes()

	tests := []struct {
		name     string
		filter   models.IssueFilter
		expected []*models.Issue
	}{
		{"no filter keeps order", models.IssueFilter{}, all},
		{"category case insensitive", models.IssueFilter{Category: "garbage"}, []*models.Issue{older, newer}},
		{"status", models.IssueFilter{Status: models.StatusResolved}, []*models.Issue{other}},
		{"newest", models.IssueFilter{Category: "Garbage", Sort: "newest"}, []*models.Issue{newer, older}},
		{"oldest", models.IssueFilter{Sort: "oldest"}, []*models.Issue{older, newer, other}},
		{"votes", models.IssueFilter{Sort: "votes"}, []*models.Issue{older, other, newer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := service.ListIssues(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, issues)
		})
	}
}

func TestListIssues_Idempotent(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()
	stored := []*models.Issue{{ID: uuid.New()}, {ID: uuid.New()}}

	repoMock.EXPECT().List(ctx).Return(stored, nil).Times(2)

	first, err := service.ListIssues(ctx, models.IssueFilter{})
	require.NoError(t, err)
	second, err := service.ListIssues(ctx, models.IssueFilter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestListIssues_RepositoryError(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()

	repoMock.EXPECT().List(ctx).Return(nil, errors.New("boom")).Times(1)

	_, err := service.ListIssues(ctx, models.IssueFilter{})

	assert.ErrorContains(t, err, "could not list issues")
}

func TestHotspots(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()

	var issues []*models.Issue
	// Пять открытых обращений в одной ячейке
	for i := 0; i < 5; i++ {
		issues = append(issues, &models.Issue{
			Category: "Potholes",
			Status:   models.StatusPending,
			Votes:    1,
			Location: models.Location{Latitude: 15.4909 + float64(i)*0.0001, Longitude: 73.8278},
		})
	}
	// Решенное обращение в той же ячейке не влияет на серьезность
	issues = append(issues, &models.Issue{
		Category: "Garbage",
		Status:   models.StatusResolved,
		Location: models.Location{Latitude: 15.4912, Longitude: 73.8281},
	})
	// Одиночное обращение в другой ячейке
	issues = append(issues, &models.Issue{
		Category: "Garbage",
		Status:   models.StatusInProgress,
		Location: models.Location{Latitude: 15.30, Longitude: 74.10},
	})

	repoMock.EXPECT().List(ctx).Return(issues, nil).Times(1)

	hotspots, err := service.Hotspots(ctx, 0)

	require.NoError(t, err)
	require.Len(t, hotspots, 2)

	top := hotspots[0]
	assert.InDelta(t, 15.49, top.Latitude, 1e-9)
	assert.InDelta(t, 73.83, top.Longitude, 1e-9)
	assert.Equal(t, 6, top.Count)
	assert.Equal(t, 5, top.OpenCount)
	assert.Equal(t, 5, top.Votes)
	assert.Equal(t, "high", top.Severity)
	assert.Equal(t, map[string]int{"Potholes": 5, "Garbage": 1}, top.Categories)

	assert.Equal(t, 1, hotspots[1].Count)
	assert.Equal(t, "low", hotspots[1].Severity)
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "low", severity(0))
	assert.Equal(t, "low", severity(1))
	assert.Equal(t, "medium", severity(2))
	assert.Equal(t, "high", severity(5))
	assert.Equal(t, "critical", severity(10))
}

func TestStats(t *testing.T) {
	service, repoMock, _, _ := newTestIssueService(t)
	ctx := context.Background()

	repoMock.EXPECT().List(ctx).Return([]*models.Issue{
		{Category: "Potholes", Status: models.StatusPending, Votes: 2},
		{Category: "Potholes", Status: models.StatusResolved, Votes: 1},
		{Category: "Garbage", Status: models.StatusInProgress},
	}, nil).Times(1)

	stats, err := service.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 3, stats.TotalVotes)
	assert.Equal(t, map[models.IssueStatus]int{
		models.StatusPending:    1,
		models.StatusResolved:   1,
		models.StatusInProgress: 1,
	}, stats.ByStatus)
	assert.Equal(t, map[string]int{"Potholes": 2, "Garbage": 1}, stats.ByCategory)
}
