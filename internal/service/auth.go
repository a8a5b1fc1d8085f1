package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository определяет контракт хранилища пользователей
type UserRepository interface {
	// Create возвращает ErrEmailTaken, если email уже зарегистрирован
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenIssuer выпускает и проверяет токены доступа
type TokenIssuer interface {
	Issue(identity models.Identity) (string, error)
	Authenticate(credential string) (*models.Identity, error)
}

// AuthService определяет контракт регистрации и входа
type AuthService interface {
	Register(ctx context.Context, input models.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Authenticate(credential string) (*models.Identity, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

const (
	minPasswordLength = 6
	// bcrypt не принимает пароли длиннее 72 байт
	maxPasswordBytes = 72
)

type authService struct {
	users  UserRepository
	tokens TokenIssuer
	logger *logrus.Logger
	cost   int
	now    func() time.Time
}

func NewAuthService(users UserRepository, tokens TokenIssuer, logger *logrus.Logger) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Register создает пользователя с захешированным паролем
func (s *authService) Register(ctx context.Context, input models.RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Register",
		"email":   email,
	})

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	role, err := models.ParseRole(input.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		return nil, fmt.Errorf("service: could not hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Warn("Email already registered")
			return nil, err
		}
		log.WithError(err).Error("Failed to create user in repository")
		return nil, fmt.Errorf("service: could not create user: %w", err)
	}

	log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return user, nil
}

// Login проверяет пароль и выпускает токен. Неизвестный email и неверный пароль неразличимы
func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Login",
		"email":   email,
	})

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("Login attempt for unknown email")
			return "", ErrInvalidCredentials
		}
		log.WithError(err).Error("Failed to load user")
		return "", fmt.Errorf("service: could not load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn("Password mismatch")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(models.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		log.WithError(err).Error("Failed to issue token")
		return "", fmt.Errorf("service: could not issue token: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User logged in")
	return token, nil
}

func (s *authService) Authenticate(credential string) (*models.Identity, error) {
	return s.tokens.Authenticate(credential)
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not get user: %w", err)
	}
	return user, nil
}
