package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/webhook"
	"github.com/sirupsen/logrus"
)

// IssueRepository определяет контракт хранилища обращений.
// Реализации: Postgres, MongoDB и память процесса
type IssueRepository interface {
	List(ctx context.Context) ([]*models.Issue, error)
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	// UpdateStatus перезаписывает статус без проверки переходов.
	// expectedVersion == 0 - последняя запись побеждает, иначе compare-and-swap
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.IssueStatus, expectedVersion int64) (*models.Issue, error)
	ToggleVote(ctx context.Context, issueID, userID uuid.UUID) (bool, int, error)
}

// IssueCache - кеш отдельных обращений. Промах возвращает nil, nil
type IssueCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	Set(ctx context.Context, issue *models.Issue) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// IssueService определяет контракт бизнес-логики обращений
type IssueService interface {
	ListIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	UpdateIssueStatus(ctx context.Context, id uuid.UUID, status string, expectedVersion int64, actor models.Identity) (*models.Issue, error)
	ToggleVote(ctx context.Context, id uuid.UUID, actor models.Identity) (*models.VoteResult, error)
	Hotspots(ctx context.Context, precision int) ([]models.Hotspot, error)
	Stats(ctx context.Context) (*models.IssueStats, error)
}

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000

	defaultHotspotPrecision = 2
	maxHotspotPrecision     = 4
)

type issueService struct {
	repo      IssueRepository
	cache     IssueCache
	publisher webhook.WebhookPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewIssueService(repo IssueRepository, cache IssueCache, publisher webhook.WebhookPublisher, logger *logrus.Logger) IssueService {
	return &issueService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// ListIssues возвращает все обращения; фильтры и сортировка применяются поверх списка хранилища
func (s *issueService) ListIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "ListIssues",
		"category": filter.Category,
		"status":   filter.Status,
	})

	issues, err := s.repo.List(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list issues from repository")
		return nil, fmt.Errorf("service: could not list issues: %w", err)
	}

	issues = applyFilter(issues, filter)
	log.WithField("count", len(issues)).Debug("Issues listed successfully")
	return issues, nil
}

func applyFilter(issues []*models.Issue, filter models.IssueFilter) []*models.Issue {
	out := issues
	if filter.Category != "" || filter.Status != "" {
		out = make([]*models.Issue, 0, len(issues))
		for _, issue := range issues {
			if filter.Category != "" && !strings.EqualFold(issue.Category, filter.Category) {
				continue
			}
			if filter.Status != "" && issue.Status != filter.Status {
				continue
			}
			out = append(out, issue)
		}
	}

	switch filter.Sort {
	case "newest":
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case "oldest":
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case "votes":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	}
	return out
}

// CreateIssue проверяет обязательные поля, выставляет значения по умолчанию и сохраняет обращение
func (s *issueService) CreateIssue(ctx context.Context, issue *models.Issue) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "issue",
		"method":  "CreateIssue",
		"title":   issue.Title,
	})
	log.Info("Attempting to create a new issue")

	if err := ValidateIssue(issue); err != nil {
		log.WithError(err).Warn("Issue validation failed")
		return err
	}

	now := s.now().UTC()
	issue.ID = uuid.New()
	issue.Status = models.StatusPending
	issue.Votes = 0
	issue.Comments = 0
	issue.Version = 1
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.Images == nil {
		issue.Images = []string{}
	}

	if err := s.repo.Create(ctx, issue); err != nil {
		log.WithError(err).Error("Failed to create issue in repository")
		return fmt.Errorf("service: could not create issue: %w", err)
	}

	log.WithField("issue_id", issue.ID).Info("Issue created successfully")

	var actor uuid.UUID
	if issue.ReportedBy != nil {
		actor = *issue.ReportedBy
	}
	s.publish(ctx, webhook.IssueEvent{
		Type:    webhook.EventIssueCreated,
		IssueID: issue.ID,
		ActorID: actor,
		Status:  issue.Status,
		Issue:   issue,
	})
	return nil
}

// ValidateIssue нормализует пробелы и проверяет поля нового обращения.
// Длины считаются в символах, а не в байтах
func ValidateIssue(issue *models.Issue) error {
	issue.Title = strings.TrimSpace(issue.Title)
	issue.Description = strings.TrimSpace(issue.Description)
	issue.Category = strings.TrimSpace(issue.Category)

	switch {
	case issue.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case utf8.RuneCountInString(issue.Title) > maxTitleLength:
		return fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxTitleLength)
	case issue.Description == "":
		return fmt.Errorf("%w: description is required", ErrValidation)
	case utf8.RuneCountInString(issue.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description must be at most %d characters", ErrValidation, maxDescriptionLength)
	case issue.Category == "":
		return fmt.Errorf("%w: category is required", ErrValidation)
	case !issue.Location.Valid():
		return fmt.Errorf("%w: location coordinates are out of range", ErrValidation)
	}
	return nil
}

// GetIssue получает обращение по ID, сначала из кеша
func (s *issueService) GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "GetIssue",
		"issue_id": id,
	})

	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read issue from cache")
	}
	if cached != nil {
		log.Debug("Issue served from cache")
		return cached, nil
	}

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get issue from repository")
		return nil, fmt.Errorf("service: could not get issue: %w", err)
	}

	if err := s.cache.Set(ctx, issue); err != nil {
		log.WithError(err).Warn("Failed to cache issue")
	}
	return issue, nil
}

// UpdateIssueStatus перезаписывает статус. Проверка роли выполняется на уровне маршрута
func (s *issueService) UpdateIssueStatus(ctx context.Context, id uuid.UUID, status string, expectedVersion int64, actor models.Identity) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "UpdateIssueStatus",
		"issue_id": id,
		"status":   status,
		"actor_id": actor.UserID,
	})
	log.Info("Attempting to update issue status")

	newStatus, err := models.ParseStatus(status)
	if err != nil {
		log.WithError(err).Warn("Invalid status requested")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	issue, err := s.repo.UpdateStatus(ctx, id, newStatus, expectedVersion)
	if err != nil {
		log.WithError(err).Warn("Failed to update issue status in repository")
		return nil, fmt.Errorf("service: could not update issue status: %w", err)
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate issue cache")
	}

	log.WithField("version", issue.Version).Info("Issue status updated successfully")
	s.publish(ctx, webhook.IssueEvent{
		Type:    webhook.EventIssueStatusChanged,
		IssueID: issue.ID,
		ActorID: actor.UserID,
		Status:  issue.Status,
		Votes:   issue.Votes,
		Issue:   issue,
	})
	return issue, nil
}

// ToggleVote ставит голос или снимает ранее поставленный тем же пользователем
func (s *issueService) ToggleVote(ctx context.Context, id uuid.UUID, actor models.Identity) (*models.VoteResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "ToggleVote",
		"issue_id": id,
		"actor_id": actor.UserID,
	})

	voted, votes, err := s.repo.ToggleVote(ctx, id, actor.UserID)
	if err != nil {
		log.WithError(err).Warn("Failed to toggle vote in repository")
		return nil, fmt.Errorf("service: could not toggle vote: %w", err)
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate issue cache")
	}

	log.WithFields(logrus.Fields{"voted": voted, "votes": votes}).Info("Vote toggled")
	s.publish(ctx, webhook.IssueEvent{
		Type:    webhook.EventIssueVoted,
		IssueID: id,
		ActorID: actor.UserID,
		Votes:   votes,
	})
	return &models.VoteResult{IssueID: id, Voted: voted, Votes: votes}, nil
}

// Hotspots группирует обращения по ячейкам сетки: координаты округляются до precision знаков
func (s *issueService) Hotspots(ctx context.Context, precision int) ([]models.Hotspot, error) {
	if precision < 1 || precision > maxHotspotPrecision {
		precision = defaultHotspotPrecision
	}

	issues, err := s.repo.List(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("method", "Hotspots").Error("Failed to list issues from repository")
		return nil, fmt.Errorf("service: could not build hotspots: %w", err)
	}

	factor := math.Pow10(precision)
	type cell struct{ lat, lon float64 }
	cells := make(map[cell]*models.Hotspot)
	for _, issue := range issues {
		key := cell{
			lat: math.Round(issue.Location.Latitude*factor) / factor,
			lon: math.Round(issue.Location.Longitude*factor) / factor,
		}
		h, ok := cells[key]
		if !ok {
			h = &models.Hotspot{Latitude: key.lat, Longitude: key.lon, Categories: map[string]int{}}
			cells[key] = h
		}
		h.Count++
		h.Votes += issue.Votes
		h.Categories[issue.Category]++
		if issue.Status.IsOpen() {
			h.OpenCount++
		}
	}

	hotspots := make([]models.Hotspot, 0, len(cells))
	for _, h := range cells {
		h.Severity = severity(h.OpenCount)
		hotspots = append(hotspots, *h)
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Count != hotspots[j].Count {
			return hotspots[i].Count > hotspots[j].Count
		}
		if hotspots[i].Latitude != hotspots[j].Latitude {
			return hotspots[i].Latitude < hotspots[j].Latitude
		}
		return hotspots[i].Longitude < hotspots[j].Longitude
	})
	return hotspots, nil
}

func severity(open int) string {
	switch {
	case open >= 10:
		return "critical"
	case open >= 5:
		return "high"
	case open >= 2:
		return "medium"
	default:
		return "low"
	}
}

// Stats считает обращения по статусам и категориям
func (s *issueService) Stats(ctx context.Context) (*models.IssueStats, error) {
	issues, err := s.repo.List(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("method", "Stats").Error("Failed to list issues from repository")
		return nil, fmt.Errorf("service: could not build stats: %w", err)
	}

	stats := &models.IssueStats{
		ByStatus:   map[models.IssueStatus]int{},
		ByCategory: map[string]int{},
	}
	for _, issue := range issues {
		stats.Total++
		stats.TotalVotes += issue.Votes
		stats.ByStatus[issue.Status]++
		stats.ByCategory[issue.Category]++
		if issue.Status.IsOpen() {
			stats.Open++
		}
	}
	return stats, nil
}

// publish не влияет на результат запроса: ошибки только логируются
func (s *issueService) publish(ctx context.Context, event webhook.IssueEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"issue_id":   event.IssueID,
		}).Warn("Failed to publish issue event")
	}
}
