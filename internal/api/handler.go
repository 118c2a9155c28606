package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ModerationRequester queues moderation decisions for asynchronous processing
type ModerationRequester interface {
	PublishModerationRequested(ctx context.Context, event *models.ModerationRequestedEvent) error
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	listings   *service.ListingService
	moderation *service.ModerationService
	stats      *service.AdminStatsService

	requester ModerationRequester
	checks    map[string]ReadinessCheck
	logger    *zap.Logger
}

// HandlerOption configures optional collaborators
type HandlerOption func(*Handler)

// WithModerationRequester enables asynchronous moderation
func WithModerationRequester(r ModerationRequester) HandlerOption {
	return func(h *Handler) {
		h.requester = r
	}
}

// WithReadinessCheck adds a dependency to /ready
func WithReadinessCheck(name string, check ReadinessCheck) HandlerOption {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// NewHandler creates a new HTTP handler
func NewHandler(
	listings *service.ListingService,
	moderation *service.ModerationService,
	stats *service.AdminStatsService,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		listings:   listings,
		moderation: moderation,
		stats:      stats,
		checks:     make(map[string]ReadinessCheck),
		logger:     util.GetLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/listings", h.createListing)
		v1.GET("/listings", h.listListings)
		v1.GET("/listings/:id", h.getListing)
		v1.PATCH("/listings/:id", h.updateListing)
		v1.DELETE("/listings/:id", h.deleteListing)
		v1.GET("/catalog/:category", h.catalog)

		v1.GET("/users/:id/listing-stats", h.ownerStats)
		v1.GET("/users/:id/notifications", h.listNotifications)
		v1.GET("/users/:id/notifications/unread-count", h.unreadCount)
		v1.POST("/users/:id/notifications/read-all", h.markAllRead)
		v1.POST("/notifications/:id/read", h.markRead)
	}

	admin := v1.Group("/admin", requireRoles("admin", "moderator"))
	{
		admin.GET("/moderation", h.moderationQueue)
		admin.POST("/listings/:id/moderate", h.moderateListing)
		admin.POST("/maintenance/reset-listings", h.resetListings)
		admin.POST("/notifications", h.sendNotification)
		admin.GET("/stats", h.adminStats)
		admin.GET("/transactions", h.listTransactions)
		admin.PATCH("/transactions/:id", h.updateTransaction)
		admin.DELETE("/transactions", h.clearTransactions)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"
	actorKey        = "actor"
)

// requireRoles admits callers whose role header matches one of roles.
// Identity is asserted by the gateway in front of this service.
func requireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader(actorIDHeader)
		role := c.GetHeader(actorRoleHeader)
		if actor == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "actor identity missing"})
			return
		}
		for _, r := range roles {
			if role == r {
				c.Set(actorKey, models.ActorID(actor))
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

func actorFrom(c *gin.Context) models.ActorID {
	actor, _ := c.Get(actorKey)
	id, _ := actor.(models.ActorID)
	return id
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
	default:
		h.logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
