package v1

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/config"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/ratelimit"
	"github.com/shenikar/cityvoice/internal/service"
	"github.com/shenikar/cityvoice/internal/storage"
	"github.com/sirupsen/logrus"
)

// Options - необязательные зависимости обработчика
type Options struct {
	Uploader storage.Uploader
	Limiter  ratelimit.Limiter
	Stream   http.Handler
	// Store - имя активного хранилища для /system/health
	Store string
}

type Handler struct {
	issueService service.IssueService
	authService  service.AuthService
	uploader     storage.Uploader
	limiter      ratelimit.Limiter
	stream       http.Handler
	store        string
	logger       *logrus.Logger
	validate     *validator.Validate
	cfg          *config.Config
	now          func() time.Time
}

func NewHandler(issueService service.IssueService, authService service.AuthService, logger *logrus.Logger, cfg *config.Config, opts Options) *Handler {
	h := &Handler{
		issueService: issueService,
		authService:  authService,
		uploader:     opts.Uploader,
		limiter:      opts.Limiter,
		stream:       opts.Stream,
		store:        opts.Store,
		logger:       logger,
		validate:     validator.New(),
		cfg:          cfg,
		now:          time.Now,
	}
	if h.limiter == nil {
		h.limiter = ratelimit.NewMemoryLimiter(cfg.IssueRateLimit, cfg.IssueRateWindow)
	}
	if h.store == "" {
		h.store = "memory"
	}
	return h
}

func parseIssueID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid issue ID"})
		return uuid.Nil, false
	}
	return id, true
}

func setETag(c *gin.Context, issue *models.Issue) {
	c.Header("ETag", strconv.Quote(strconv.FormatInt(issue.Version, 10)))
}

// parseIfMatch понимает "3", "\"3\"" и W/"3". Отсутствие заголовка дает 0
func parseIfMatch(header string) (int64, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return 0, nil
	}
	header = strings.TrimPrefix(header, "W/")
	header = strings.Trim(header, `"`)
	version, err := strconv.ParseInt(header, 10, 64)
	if err != nil || version < 1 {
		return 0, strconv.ErrSyntax
	}
	return version, nil
}

// @Summary Create a new issue
// @Description Report a civic issue. Accepts multipart form data with an optional issueImage file, or JSON.
// @Tags Issues
// @Accept multipart/form-data,json
// @Produce json
// @Security TokenAuth
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param category formData string true "Category"
// @Param latitude formData number true "Latitude"
// @Param longitude formData number true "Longitude"
// @Param address formData string false "Address"
// @Param issueImage formData file false "Photo of the issue"
// @Success 201 {object} IssueResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 429 {object} RateLimitResponse "Too many reports"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /issues [post]
func (h *Handler) createIssue(c *gin.Context) {
	identity, _ := identityFrom(c)
	log := h.logger.WithFields(logrus.Fields{"method": "createIssue", "user_id": identity.UserID})

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		// Запас на поля формы поверх лимита файла
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.UploadMaxBytes+1<<20)
	}

	var input CreateIssueRequest
	if err := c.ShouldBind(&input); err != nil {
		log.WithError(err).Warn("Failed to bind request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	model := DTOToIssueModel(input)
	reporter := identity.UserID
	model.ReportedBy = &reporter

	// Файл сохраняется только для обращения, прошедшего проверку
	if err := service.ValidateIssue(model); err != nil {
		respondError(c, log, err)
		return
	}

	imageURL, err := h.saveImage(c)
	if err != nil {
		respondError(c, log, err)
		return
	}
	if imageURL != "" {
		model.Images = append(model.Images, imageURL)
	}

	if err := h.issueService.CreateIssue(c.Request.Context(), model); err != nil {
		if imageURL != "" {
			if delErr := h.uploader.Delete(context.WithoutCancel(c.Request.Context()), imageURL); delErr != nil {
				log.WithError(delErr).WithField("url", imageURL).Warn("Failed to delete orphaned issue image")
			}
		}
		respondError(c, log, err)
		return
	}
	setETag(c, model)
	c.JSON(http.StatusCreated, ModelToIssueResponse(model))
}

// @Summary Get a list of issues
// @Description All issues in store order. Optional filters by category and status, optional sort.
// @Tags Issues
// @Produce json
// @Param category query string false "Category filter"
// @Param status query string false "Status filter"
// @Param sort query string false "newest, oldest or votes"
// @Success 200 {array} IssueResponse
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /issues [get]
func (h *Handler) listIssues(c *gin.Context) {
	log := h.logger.WithField("method", "listIssues")

	filter := models.IssueFilter{Category: c.Query("category"), Sort: c.Query("sort")}
	if strings.EqualFold(filter.Category, "all") {
		filter.Category = ""
	}
	if status := c.Query("status"); status != "" && !strings.EqualFold(status, "all") {
		parsed, err := models.ParseStatus(status)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		filter.Status = parsed
	}
	switch filter.Sort {
	case "", "newest", "oldest", "votes":
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "sort must be one of newest, oldest, votes"})
		return
	}

	issues, err := h.issueService.ListIssues(c.Request.Context(), filter)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIssueResponses(issues))
}

// @Summary Get issue by ID
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} ErrorResponse "Invalid issue ID"
// @Failure 404 {object} ErrorResponse "Issue not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /issues/{id} [get]
func (h *Handler) getIssue(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIssue").WithField("id", id)

	issue, err := h.issueService.GetIssue(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err)
		return
	}
	setETag(c, issue)
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Update issue status
// @Description Overwrite the status. Moderator, official or admin only. Send If-Match with the issue version to reject stale writes.
// @Tags Issues
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param id path string true "Issue ID"
// @Param If-Match header string false "Expected issue version"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} ErrorResponse "Invalid issue ID or status"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Role not allowed"
// @Failure 404 {object} ErrorResponse "Issue not found"
// @Failure 409 {object} ErrorResponse "Version conflict"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /issues/{id} [put]
func (h *Handler) updateIssueStatus(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	identity, _ := identityFrom(c)
	log := h.logger.WithFields(logrus.Fields{"method": "updateIssueStatus", "id": id, "user_id": identity.UserID})

	expectedVersion, err := parseIfMatch(c.GetHeader("If-Match"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid If-Match header"})
		return
	}

	var input UpdateStatusRequest
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

	issue, err := h.issueService.UpdateIssueStatus(c.Request.Context(), id, input.Status, expectedVersion, identity)
	if err != nil {
		respondError(c, log, err)
		return
	}
	setETag(c, issue)
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Toggle upvote
// @Description Adds the caller's vote, or removes it if already present.
// @Tags Issues
// @Produce json
// @Security TokenAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} VoteResponse
// @Failure 400 {object} ErrorResponse "Invalid issue ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Issue not found"
// @Router /issues/{id}/vote [post]
func (h *Handler) toggleVote(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	identity, _ := identityFrom(c)
	log := h.logger.WithFields(logrus.Fields{"method": "toggleVote", "id": id, "user_id": identity.UserID})

	result, err := h.issueService.ToggleVote(c.Request.Context(), id, identity)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, VoteResponse{IssueID: result.IssueID, Voted: result.Voted, Votes: result.Votes})
}

// @Summary Issue hotspots
// @Description Issues grouped into grid cells by rounding coordinates to the given number of decimals.
// @Tags Admin
// @Produce json
// @Param precision query int false "Decimals kept in coordinates (1-4)" default(2)
// @Success 200 {array} HotspotResponse
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /issues/hotspots [get]
func (h *Handler) getHotspots(c *gin.Context) {
	log := h.logger.WithField("method", "getHotspots")
	precision, err := strconv.Atoi(c.DefaultQuery("precision", "2"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "precision must be an integer"})
		return
	}

	hotspots, err := h.issueService.Hotspots(c.Request.Context(), precision)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToHotspotResponses(hotspots))
}

// @Summary Issue statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /issues/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	stats, err := h.issueService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToStatsResponse(stats))
}

// @Summary Live issue events
// @Description Websocket stream of issue.created, issue.status_changed and issue.voted events.
// @Tags Issues
// @Router /issues/stream [get]
func (h *Handler) streamIssues(c *gin.Context) {
	h.stream.ServeHTTP(c.Writer, c.Request)
}

// @Summary Get application health status
// @Description Get health status of the application and the active store
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: h.store})
}

// @Summary Public client configuration
// @Tags System
// @Produce json
// @Success 200 {object} ClientConfigResponse
// @Router /system/config [get]
func (h *Handler) clientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, ClientConfigResponse{
		MapsAPIKey:      h.cfg.MapsAPIKey,
		AuthProviderURL: h.cfg.AuthProviderURL,
		MaxUploadBytes:  h.cfg.UploadMaxBytes,
	})
}
