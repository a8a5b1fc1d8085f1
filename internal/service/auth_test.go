package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T) (*authService, *mocks.MockUserRepository, *mocks.MockTokenIssuer) {
	ctrl := gomock.NewController(t)
	usersMock := mocks.NewMockUserRepository(ctrl)
	tokensMock := mocks.NewMockTokenIssuer(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	svc := NewAuthService(usersMock, tokensMock, logger).(*authService)
	svc.cost = bcrypt.MinCost
	return svc, usersMock, tokensMock
}

func TestRegister_Success(t *testing.T) {
	// Подготовка
	service, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()

	// Ожидания
	usersMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, user *models.User) error {
			assert.Equal(t, "a@x.com", user.Email)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw123456")))
			return nil
		}).Times(1)

	// Действие
	user, err := service.Register(ctx, models.RegisterInput{
		Username: "alice",
		Email:    "  A@X.com ",
		Password: "pw123456",
	})

	// Проверки
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, models.RoleCitizen, user.Role)
	assert.NotEqual(t, "pw123456", user.PasswordHash)
}

func TestRegister_WithRole(t *testing.T) {
	service, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()

	usersMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)

	user, err := service.Register(ctx, models.RegisterInput{
		Username: "mod",
		Email:    "mod@x.com",
		Password: "pw123456",
		Role:     "Moderator",
	})

	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, user.Role)
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input models.RegisterInput
	}{
		{"missing username", models.RegisterInput{Email: "a@x.com", Password: "pw123456"}},
		{"bad email", models.RegisterInput{Username: "a", Email: "not-an-email", Password: "pw123456"}},
		{"short password", models.RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}},
		{"unknown role", models.RegisterInput{Username: "a", Email: "a@x.com", Password: "pw123456", Role: "mayor"}},
		// 40 символов, 80 байт
		{"password over bcrypt limit", models.RegisterInput{Username: "a", Email: "a@x.com", Password: strings.Repeat("ж", 40)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, usersMock, _ := newTestAuthService(t)
			usersMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

			_, err := service.Register(context.Background(), tt.input)

			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_PasswordAtByteLimit(t *testing.T) {
	service, usersMock, _ := newTestAuthService(t)
	password := strings.Repeat("ж", 36) // ровно 72 байта
	usersMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	user, err := service.Register(context.Background(), models.RegisterInput{Username: "asha", Email: "a@x.com", Password: password})

	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	service, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()

	usersMock.EXPECT().Create(ctx, gomock.Any()).Return(ErrEmailTaken).Times(1)

	user, err := service.Register(ctx, models.RegisterInput{Username: "a", Email: "a@x.com", Password: "pw123456"})

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_Success(t *testing.T) {
	// Подготовка
	service, usersMock, tokensMock := newTestAuthService(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw123456"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "a@x.com", PasswordHash: string(hash), Role: models.RoleOfficial}

	// Ожидания
	usersMock.EXPECT().GetByEmail(ctx, "a@x.com").Return(user, nil).Times(1)
	tokensMock.EXPECT().
		Issue(models.Identity{UserID: user.ID, Role: models.RoleOfficial}).
		Return("signed-token", nil).
		Times(1)

	// Действие
	token, err := service.Login(ctx, "A@x.com", "pw123456")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "signed-token", token)
}

func TestLogin_WrongPassword(t *testing.T) {
	service, usersMock, tokensMock := newTestAuthService(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw123456"), bcrypt.MinCost)
	require.NoError(t, err)

	usersMock.EXPECT().GetByEmail(ctx, "a@x.com").Return(&models.User{PasswordHash: string(hash)}, nil).Times(1)
	tokensMock.EXPECT().Issue(gomock.Any()).Times(0)

	_, err = service.Login(ctx, "a@x.com", "wrong-password")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	service, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()

	usersMock.EXPECT().GetByEmail(ctx, "ghost@x.com").Return(nil, ErrUserNotFound).Times(1)

	_, err := service.Login(ctx, "ghost@x.com", "pw123456")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_RepositoryError(t *testing.T) {
	service, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()

	usersMock.EXPECT().GetByEmail(ctx, "a@x.com").Return(nil, errors.New("db down")).Times(1)

	_, err := service.Login(ctx, "a@x.com", "pw123456")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorContains(t, err, "could not load user")
}

func TestGetUser_NotFound(t *testing.T) {
	service, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()
	id := uuid.New()

	usersMock.EXPECT().GetByID(ctx, id).Return(nil, ErrUserNotFound).Times(1)

	_, err := service.GetUser(ctx, id)

	assert.ErrorIs(t, err, ErrUserNotFound)
}
