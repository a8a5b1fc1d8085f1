package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
)

var (
	// ErrMissingToken - учетные данные не переданы
	ErrMissingToken = errors.New("no token, authorization denied")
	// ErrInvalidToken - подпись, формат или срок действия не прошли проверку
	ErrInvalidToken = errors.New("token is not valid")
)

// Claims - полезная нагрузка токена: {"user": {"id", "role"}}
type Claims struct {
	User ClaimsUser `json:"user"`
	jwt.RegisteredClaims
}

type ClaimsUser struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// TokenManager подписывает и проверяет HS256 токены общим секретом
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue выпускает токен для пользователя. Обновления токенов нет
func (m *TokenManager) Issue(identity models.Identity) (string, error) {
	now := m.now()
	claims := Claims{
		User: ClaimsUser{
			ID:   identity.UserID.String(),
			Role: string(identity.Role),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Authenticate проверяет учетные данные и возвращает личность вызывающего
func (m *TokenManager) Authenticate(credential string) (*models.Identity, error) {
	if credential == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.User.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id claim", ErrInvalidToken)
	}
	role, err := models.ParseRole(claims.User.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &models.Identity{UserID: userID, Role: role}, nil
}
