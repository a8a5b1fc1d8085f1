package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/cityvoice/internal/service"
	"github.com/shenikar/cityvoice/internal/storage"
	"github.com/sirupsen/logrus"
)

// respondError сопоставляет ошибки сервиса с HTTP-статусами.
// Ошибки хранилища не раскрываются клиенту
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, storage.ErrNotImage):
		log.WithError(err).Warn("Request rejected by validation")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrEmailTaken):
		log.Warn("Duplicate registration")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "User already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warn("Invalid credentials")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid credentials"})
	case errors.Is(err, service.ErrIssueNotFound):
		log.WithError(err).Warn("Issue not found")
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "issue not found"})
	case errors.Is(err, service.ErrUserNotFound):
		log.WithError(err).Warn("User not found")
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, service.ErrVersionConflict):
		log.WithError(err).Warn("Version conflict")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "issue was modified by another request"})
	default:
		log.WithError(err).Error("Internal error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
