package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shift-booking-backend/internal/jobs"
)

type bookShiftsRequest struct {
	Shifts []jobs.ShiftInput `json:"shifts" binding:"required"`
}

// BookShifts handles POST /api/book-shifts. It answers as soon as the batch
// is stored; booking happens in the background.
func (h *Handler) BookShifts(c *gin.Context) {
	var req bookShiftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.submit(c, req.Shifts)
}

// TestBook handles POST /api/test-book. It submits the built-in sample batch
// and requires confirm=true.
func (h *Handler) TestBook(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pass confirm=true to execute test booking"})
		return
	}

	h.submit(c, SampleShifts())
}

func (h *Handler) submit(c *gin.Context, shifts []jobs.ShiftInput) {
	requestID, err := h.intake.Submit(c.Request.Context(), shifts)
	if err != nil {
		var validationErr *jobs.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
			return
		}
		h.logger.Error("failed to submit shifts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store request"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID, "status": "accepted"})
}

// GetRequestStatus handles GET /api/requests/:id.
func (h *Handler) GetRequestStatus(c *gin.Context) {
	view, err := h.reporter.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		var validationErr *jobs.ValidationError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		case errors.Is(err, jobs.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		default:
			h.logger.Error("failed to load request status", "request_id", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load request"})
		}
		return
	}

	c.JSON(http.StatusOK, view)
}

// Healthz reports that the process is serving.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
