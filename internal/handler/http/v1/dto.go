package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateIssueRequest DTO для создания обращения.
// Принимается как multipart-форма (с файлом issueImage) или как JSON
// @Description DTO для создания обращения
type CreateIssueRequest struct {
	Title       string   `form:"title" json:"title" validate:"required,max=200"`
	Description string   `form:"description" json:"description" validate:"required,max=2000"`
	Category    string   `form:"category" json:"category" validate:"required,max=100"`
	Latitude    *float64 `form:"latitude" json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `form:"longitude" json:"longitude" validate:"required,longitude"`
	Address     string   `form:"address" json:"address,omitempty" validate:"max=500"`
}

// UpdateStatusRequest DTO для смены статуса обращения
// @Description DTO для смены статуса обращения
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// LocationResponse - точка обращения; coordinates в порядке [longitude, latitude]
type LocationResponse struct {
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Address     string     `json:"address,omitempty"`
	Coordinates [2]float64 `json:"coordinates"`
}

// IssueResponse DTO для ответа с информацией об обращении
// @Description DTO для ответа с информацией об обращении
type IssueResponse struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Status      string           `json:"status"`
	Location    LocationResponse `json:"location"`
	ImageURL    string           `json:"imageUrl"`
	Images      []string         `json:"images"`
	ReportedBy  *uuid.UUID       `json:"reportedBy"`
	Votes       int              `json:"votes"`
	Comments    int              `json:"comments"`
	Version     int64            `json:"version"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// VoteResponse DTO для ответа на голосование
type VoteResponse struct {
	IssueID uuid.UUID `json:"issueId"`
	Voted   bool      `json:"voted"`
	Votes   int       `json:"votes"`
}

// HotspotResponse DTO ячейки карты горячих точек
type HotspotResponse struct {
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Count      int            `json:"count"`
	OpenCount  int            `json:"openCount"`
	Votes      int            `json:"votes"`
	Severity   string         `json:"severity"`
	Categories map[string]int `json:"categories"`
}

// StatsResponse DTO для ответа со статистикой
// @Description DTO для ответа со статистикой
type StatsResponse struct {
	Total      int            `json:"total"`
	Open       int            `json:"open"`
	TotalVotes int            `json:"totalVotes"`
	ByStatus   map[string]int `json:"byStatus"`
	ByCategory map[string]int `json:"byCategory"`
}

// RegisterRequest DTO регистрации
// @Description DTO регистрации
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=citizen moderator official admin"`
}

// RegisterResponse DTO ответа на регистрацию
type RegisterResponse struct {
	Message string    `json:"message"`
	ID      uuid.UUID `json:"id"`
}

// LoginRequest DTO входа
// @Description DTO входа
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse DTO с токеном доступа
type LoginResponse struct {
	Token string `json:"token"`
}

// UserResponse DTO профиля пользователя
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthResponse DTO проверки состояния
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// ClientConfigResponse - публичная конфигурация для клиентов
type ClientConfigResponse struct {
	MapsAPIKey      string `json:"mapsApiKey"`
	AuthProviderURL string `json:"authProviderUrl"`
	MaxUploadBytes  int64  `json:"maxUploadBytes"`
}

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// RateLimitResponse - тело ответа 429
type RateLimitResponse struct {
	Error      string  `json:"error"`
	RetryAfter float64 `json:"retry_after"`
}
