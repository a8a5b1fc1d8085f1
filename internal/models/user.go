package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleModerator Role = "moderator"
	RoleOfficial  Role = "official"
	RoleAdmin     Role = "admin"
)

// ParseRole возвращает citizen для пустой строки
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleCitizen, nil
	case RoleCitizen, RoleModerator, RoleOfficial, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// CanModerate - роль может менять статус обращений
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleOfficial || r == RoleAdmin
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity - личность вызывающего, извлеченная из токена
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// RegisterInput - данные регистрации
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}
