package models

import (
	"time"

	"github.com/google/uuid"
)

// Location - географическая точка обращения
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Coordinates возвращает пару в порядке GeoJSON: [longitude, latitude]
func (l Location) Coordinates() [2]float64 {
	return [2]float64{l.Longitude, l.Latitude}
}

// Valid проверяет диапазоны широты и долготы
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

type Issue struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Status      IssueStatus `json:"status"`
	Location    Location    `json:"location"`
	Images      []string    `json:"images"`
	ReportedBy  *uuid.UUID  `json:"reported_by,omitempty"`
	Votes       int         `json:"votes"`
	Comments    int         `json:"comments"`
	Version     int64       `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ImageURL возвращает первое изображение или пустую строку
func (i *Issue) ImageURL() string {
	if len(i.Images) == 0 {
		return ""
	}
	return i.Images[0]
}

// Clone возвращает глубокую копию, чтобы хранилища не отдавали наружу свои указатели
func (i *Issue) Clone() *Issue {
	c := *i
	if i.Images != nil {
		c.Images = append([]string(nil), i.Images...)
	}
	if i.ReportedBy != nil {
		id := *i.ReportedBy
		c.ReportedBy = &id
	}
	return &c
}

// IssueFilter - параметры ленты обращений
type IssueFilter struct {
	Category string
	Status   IssueStatus
	Sort     string // newest, oldest, votes
}

// VoteResult - состояние голоса пользователя после переключения
type VoteResult struct {
	IssueID uuid.UUID `json:"issue_id"`
	Voted   bool      `json:"voted"`
	Votes   int       `json:"votes"`
}

// Hotspot - ячейка сетки карты с агрегированными обращениями
type Hotspot struct {
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Count      int            `json:"count"`
	OpenCount  int            `json:"open_count"`
	Votes      int            `json:"votes"`
	Severity   string         `json:"severity"`
	Categories map[string]int `json:"categories"`
}

// IssueStats - сводка для панели администратора
type IssueStats struct {
	Total      int                 `json:"total"`
	Open       int                 `json:"open"`
	TotalVotes int                 `json:"total_votes"`
	ByStatus   map[IssueStatus]int `json:"by_status"`
	ByCategory map[string]int      `json:"by_category"`
}
