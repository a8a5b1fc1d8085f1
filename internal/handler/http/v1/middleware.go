package v1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/cityvoice/internal/service"
	"github.com/shenikar/cityvoice/internal/storage"
	"github.com/sirupsen/logrus"
)

// rateLimit ограничивает число действий на пользователя.
// При недоступности ограничителя запрос пропускается
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		key := c.ClientIP()
		if ok {
			key = identity.UserID.String()
		}

		allowed, retryAfter, err := h.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			h.logger.WithError(err).WithField("key", key).Error("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			h.logger.WithFields(logrus.Fields{
				"key":         key,
				"path":        c.FullPath(),
				"retry_after": retryAfter,
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
				Error:      "rate limit exceeded",
				RetryAfter: retryAfter.Seconds(),
			})
			return
		}
		c.Next()
	}
}

// saveImage сохраняет необязательный файл issueImage и возвращает его URL.
// Пустая строка означает, что файла в запросе нет
func (h *Handler) saveImage(c *gin.Context) (string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return "", nil
	}
	header, err := c.FormFile("issueImage")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: could not read issueImage: %v", service.ErrValidation, err)
	}
	if header.Size > h.cfg.UploadMaxBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", service.ErrValidation, h.cfg.UploadMaxBytes)
	}
	if h.uploader == nil {
		return "", errors.New("image uploads are not configured")
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("could not open uploaded image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.UploadMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("could not read uploaded image: %w", err)
	}
	mtype, err := storage.DetectImage(data)
	if err != nil {
		return "", err
	}

	name := storage.ObjectName(h.now(), header.Filename, mtype)
	url, err := h.uploader.Save(c.Request.Context(), name, mtype.String(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("could not store uploaded image: %w", err)
	}
	h.logger.WithFields(logrus.Fields{"url": url, "content_type": mtype.String()}).Info("Issue image stored")
	return url, nil
}
