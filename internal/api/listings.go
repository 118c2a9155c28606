package api

import (
	"net/http"

	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
)

// createListing handles listing submission
func (h *Handler) createListing(c *gin.Context) {
	var req models.ListingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	listing, err := h.listings.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "Failed to create listing")
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// listListings handles filtered listing queries
func (h *Handler) listListings(c *gin.Context) {
	filter := models.ListingFilter{
		OwnerID:  c.Query("owner_id"),
		Category: models.Category(c.Query("category")),
		Status:   models.ListingStatus(c.Query("status")),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		badRequest(c, "Invalid category", nil)
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		badRequest(c, "Invalid status", nil)
		return
	}

	listings, err := h.listings.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err, "Failed to list listings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings, "count": len(listings)})
}

// getListing handles get listing by ID
func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.listings.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Listing not found")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// updateListing handles partial listing edits
func (h *Handler) updateListing(c *gin.Context) {
	var req models.ListingUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	listing, err := h.listings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err, "Failed to update listing")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// deleteListing handles listing removal
func (h *Handler) deleteListing(c *gin.Context) {
	if err := h.listings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to delete listing")
		return
	}

	c.Status(http.StatusNoContent)
}

// catalog serves the public, active-only view of a category
func (h *Handler) catalog(c *gin.Context) {
	listings, err := h.listings.ListByCategory(c.Request.Context(), models.Category(c.Param("category")))
	if err != nil {
		h.writeError(c, err, "Failed to load catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings, "count": len(listings)})
}

func (h *Handler) ownerStats(c *gin.Context) {
	stats, err := h.listings.OwnerStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to load listing stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
