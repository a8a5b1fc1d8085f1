// Package localcache - локальная копия обращений для офлайн-режима клиента.
// Данные не синхронизируются с сервером
package localcache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const reportedIssuesKey = "cityvoice_reported_issues"

// Coordinates - точка в порядке lat/lng, как ее хранит клиент
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocalIssue - обращение в локальном кеше
type LocalIssue struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Location    string      `json:"location"`
	Coordinates Coordinates `json:"coordinates"`
	Upvotes     int         `json:"upvotes"`
	Comments    int         `json:"comments"`
	Status      string      `json:"status"`
	TimeAgo     string      `json:"timeAgo"`
	Date        time.Time   `json:"date"`
	ReportedBy  string      `json:"reportedBy"`
	Images      []string    `json:"images"`
	HasUpvoted  bool        `json:"hasUpvoted"`
}

// NewIssue - поля, которые задает пользователь при локальном сообщении
type NewIssue struct {
	Title       string
	Description string
	Category    string
	Location    string
	Coordinates Coordinates
	ReportedBy  string
	Images      []string
}

type Cache struct {
	store Storage
	now   func() time.Time
	rand  func(n int) int
}

func New(store Storage) *Cache {
	return &Cache{store: store, now: time.Now, rand: rand.IntN}
}

// GetReportedIssues возвращает обращения пользователя, новые первыми.
// Поврежденные данные дают пустой список
func (c *Cache) GetReportedIssues(ctx context.Context) ([]LocalIssue, error) {
	raw, ok, err := c.store.GetItem(ctx, reportedIssuesKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []LocalIssue{}, nil
	}
	var issues []LocalIssue
	if err := json.Unmarshal([]byte(raw), &issues); err != nil || issues == nil {
		return []LocalIssue{}, nil
	}
	return issues, nil
}

// AddReportedIssue добавляет обращение в начало списка
func (c *Cache) AddReportedIssue(ctx context.Context, in NewIssue) (LocalIssue, error) {
	now := c.now()
	images := in.Images
	if images == nil {
		images = []string{}
	}
	issue := LocalIssue{
		ID:          c.newID(now),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		Coordinates: in.Coordinates,
		Status:      "pending",
		TimeAgo:     "Just now",
		Date:        now.UTC(),
		ReportedBy:  in.ReportedBy,
		Images:      images,
		HasUpvoted:  true,
	}

	current, err := c.GetReportedIssues(ctx)
	if err != nil {
		return LocalIssue{}, err
	}
	if err := c.save(ctx, append([]LocalIssue{issue}, current...)); err != nil {
		return LocalIssue{}, err
	}
	return issue, nil
}

// RemoveReportedIssue удаляет обращение; неизвестный id не ошибка
func (c *Cache) RemoveReportedIssue(ctx context.Context, id string) error {
	current, err := c.GetReportedIssues(ctx)
	if err != nil {
		return err
	}
	kept := current[:0]
	for _, issue := range current {
		if issue.ID != id {
			kept = append(kept, issue)
		}
	}
	return c.save(ctx, kept)
}

// AllIssues - демонстрационный набор, затем обращения пользователя
func (c *Cache) AllIssues(ctx context.Context) ([]LocalIssue, error) {
	reported, err := c.GetReportedIssues(ctx)
	if err != nil {
		return nil, err
	}
	return append(DefaultIssues(c.now()), reported...), nil
}

func (c *Cache) save(ctx context.Context, issues []LocalIssue) error {
	data, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal reported issues: %w", err)
	}
	return c.store.SetItem(ctx, reportedIssuesKey, string(data))
}

// newID строит id вида user-<millis>-<9 символов base36>
func (c *Cache) newID(now time.Time) string {
	var b strings.Builder
	for i := 0; i < 9; i++ {
		b.WriteString(strconv.FormatInt(int64(c.rand(36)), 36))
	}
	return fmt.Sprintf("user-%d-%s", now.UnixMilli(), b.String())
}
