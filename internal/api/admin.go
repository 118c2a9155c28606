package api

import (
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type moderateRequest struct {
	Decision models.Decision `json:"decision" binding:"required"`
	Comment  string          `json:"comment"`
}

type transactionUpdateRequest struct {
	Status models.TransactionStatus `json:"status" binding:"required"`
	Notes  string                   `json:"notes"`
}

func (h *Handler) moderationQueue(c *gin.Context) {
	queue, err := h.listings.PendingQueue(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to load moderation queue")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": queue, "count": len(queue)})
}

// moderateListing applies a decision synchronously, or queues it when async=true
func (h *Handler) moderateListing(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if !req.Decision.Valid() {
		badRequest(c, "Decision must be approve or reject", nil)
		return
	}

	listingID := c.Param("id")
	moderator := actorFrom(c)

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.queueModeration(c, listingID, moderator, req)
		return
	}

	result, err := h.moderation.Moderate(c.Request.Context(), listingID, req.Decision, moderator, req.Comment)
	if err != nil {
		h.writeError(c, err, "Moderation failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) queueModeration(c *gin.Context, listingID string, moderator models.ActorID, req moderateRequest) {
	if h.requester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Asynchronous moderation is disabled"})
		return
	}

	event := &models.ModerationRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeModerationRequested,
			Timestamp: time.Now(),
		},
		ListingID:   listingID,
		Decision:    req.Decision,
		ModeratorID: moderator,
		Comment:     req.Comment,
	}
	if err := h.requester.PublishModerationRequested(c.Request.Context(), event); err != nil {
		h.logger.Error("Failed to queue moderation request",
			zap.String("listing_id", listingID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to queue moderation request", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": event.EventID, "listing_id": listingID})
}

func (h *Handler) resetListings(c *gin.Context) {
	n, err := h.listings.ResetAllToActive(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to reset listings")
		return
	}

	h.logger.Warn("Listing statuses reset", zap.String("actor", string(actorFrom(c))), zap.Int("count", n))
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) sendNotification(c *gin.Context) {
	var req models.NotificationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	n, err := h.moderation.Notify(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "Failed to create notification")
		return
	}

	c.JSON(http.StatusCreated, n)
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to load stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) listTransactions(c *gin.Context) {
	var (
		txns []models.AuditTransaction
		err  error
	)
	if userID := c.Query("user_id"); userID != "" {
		txns, err = h.stats.UserTransactions(c.Request.Context(), userID)
	} else {
		txns, err = h.stats.Transactions(c.Request.Context())
	}
	if err != nil {
		h.writeError(c, err, "Failed to load transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (h *Handler) updateTransaction(c *gin.Context) {
	var req transactionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	txn, err := h.stats.UpdateTransactionStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		h.writeError(c, err, "Failed to update transaction")
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *Handler) clearTransactions(c *gin.Context) {
	if err := h.stats.ClearTransactions(c.Request.Context()); err != nil {
		h.writeError(c, err, "Failed to clear transactions")
		return
	}

	c.Status(http.StatusNoContent)
}
