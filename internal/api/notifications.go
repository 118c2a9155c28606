package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.moderation.ListForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to load notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.moderation.UnreadCountForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to count notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *Handler) markRead(c *gin.Context) {
	if err := h.moderation.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to mark notification read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *Handler) markAllRead(c *gin.Context) {
	changed, err := h.moderation.MarkAllReadForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to mark notifications read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": changed})
}
