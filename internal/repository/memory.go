package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/service"
)

type voteKey struct {
	issue uuid.UUID
	user  uuid.UUID
}

// MemoryIssueRepository хранит обращения в памяти процесса.
// Используется, когда ни одна БД не доступна на старте
type MemoryIssueRepository struct {
	mu     sync.RWMutex
	order  []uuid.UUID
	issues map[uuid.UUID]*models.Issue
	votes  map[voteKey]struct{}
	now    func() time.Time
}

func NewMemoryIssueRepository(seed ...*models.Issue) *MemoryIssueRepository {
	r := &MemoryIssueRepository{
		issues: make(map[uuid.UUID]*models.Issue),
		votes:  make(map[voteKey]struct{}),
		now:    time.Now,
	}
	for _, issue := range seed {
		r.order = append(r.order, issue.ID)
		r.issues[issue.ID] = issue.Clone()
	}
	return r
}

// List возвращает копии в порядке вставки
func (r *MemoryIssueRepository) List(_ context.Context) ([]*models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issues := make([]*models.Issue, 0, len(r.order))
	for _, id := range r.order {
		issues = append(issues, r.issues[id].Clone())
	}
	return issues, nil
}

func (r *MemoryIssueRepository) Create(_ context.Context, issue *models.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.issues[issue.ID]; exists {
		return fmt.Errorf("issue with id %s already exists", issue.ID)
	}
	r.order = append(r.order, issue.ID)
	r.issues[issue.ID] = issue.Clone()
	return nil
}

func (r *MemoryIssueRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrIssueNotFound)
	}
	return issue.Clone(), nil
}

func (r *MemoryIssueRepository) UpdateStatus(_ context.Context, id uuid.UUID, status models.IssueStatus, expectedVersion int64) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue with id %s not found for update: %w", id, service.ErrIssueNotFound)
	}
	if expectedVersion != 0 && issue.Version != expectedVersion {
		return nil, fmt.Errorf("issue with id %s, expected version %d: %w", id, expectedVersion, service.ErrVersionConflict)
	}

	issue.Status = status
	issue.Version++
	issue.UpdatedAt = r.now().UTC()
	return issue.Clone(), nil
}

func (r *MemoryIssueRepository) ToggleVote(_ context.Context, issueID, userID uuid.UUID) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[issueID]
	if !ok {
		return false, 0, fmt.Errorf("issue with id %s: %w", issueID, service.ErrIssueNotFound)
	}

	key := voteKey{issue: issueID, user: userID}
	_, voted := r.votes[key]
	if voted {
		delete(r.votes, key)
		if issue.Votes > 0 {
			issue.Votes--
		}
	} else {
		r.votes[key] = struct{}{}
		issue.Votes++
	}
	issue.Version++
	issue.UpdatedAt = r.now().UTC()
	return !voted, issue.Votes, nil
}

// MemoryUserRepository хранит пользователей в памяти процесса
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return service.ErrEmailTaken
	}
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	user := *r.byID[id]
	return &user, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	user := *stored
	return &user, nil
}

// SampleIssues - демонстрационная запись для режима без БД
func SampleIssues(now time.Time) []*models.Issue {
	return []*models.Issue{
		{
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("cityvoice:sample-pothole")),
			Title:       "Sample pothole",
			Description: "Demo issue created by mock route",
			Category:    "Potholes",
			Status:      models.StatusPending,
			Location:    models.Location{Latitude: 15.4909, Longitude: 73.8278},
			Images:      []string{},
			Version:     1,
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		},
	}
}
