package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/cityvoice/internal/auth"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/sirupsen/logrus"
)

const identityKey = "identity"

// Authenticator проверяет учетные данные запроса
type Authenticator interface {
	Authenticate(credential string) (*models.Identity, error)
}

// AuthMiddleware читает токен из x-auth-token или Authorization: Bearer
// и кладет личность вызывающего в контекст gin
func AuthMiddleware(authenticator Authenticator, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("x-auth-token")
		if token == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}
		}

		identity, err := authenticator.Authenticate(token)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				log.WithField("path", c.FullPath()).Warn("Token missing from request")
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrMissingToken.Error()})
				return
			}
			log.WithError(err).WithField("path", c.FullPath()).Warn("Invalid token provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrInvalidToken.Error()})
			return
		}

		c.Set(identityKey, *identity)
		c.Next()
	}
}

// RequireRole пропускает роли, для которых allow возвращает true. Проверка идет до разбора тела
func RequireRole(log *logrus.Logger, allow func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrMissingToken.Error()})
			return
		}
		if !allow(identity.Role) {
			log.WithFields(logrus.Fields{
				"user_id": identity.UserID,
				"role":    identity.Role,
				"path":    c.FullPath(),
			}).Warn("Role not allowed")
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "not authorized for this action"})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// @Summary Register a new user
// @Description Create an account. Role defaults to citizen.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Registration request"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse "Validation error or duplicate email"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input RegisterRequest
	log := h.logger.WithField("method", "register")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), models.RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
	})
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, RegisterResponse{Message: "User registered successfully!", ID: user.ID})
}

// @Summary Log in
// @Description Exchange email and password for a signed token valid for one hour.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse "Invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input LoginRequest
	log := h.logger.WithField("method", "login")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid credentials"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token})
}

// @Summary Current user
// @Tags Auth
// @Produce json
// @Security TokenAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /auth/me [get]
func (h *Handler) me(c *gin.Context) {
	identity, _ := identityFrom(c)
	log := h.logger.WithField("method", "me").WithField("user_id", identity.UserID)

	user, err := h.authService.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToUserResponse(user))
}
