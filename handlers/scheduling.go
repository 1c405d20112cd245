package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicsched/models"
	"clinicsched/services/scheduling"
)

// SchedulingHandler exposes draft scheduling sessions to the form UI.
type SchedulingHandler struct {
	Service scheduling.SessionService
}

func NewSchedulingHandler(svc scheduling.SessionService) *SchedulingHandler {
	return &SchedulingHandler{Service: svc}
}

// StartSessionHandler creates a scheduling session, optionally seeded with an
// existing appointment's fields for edit mode.
func (h *SchedulingHandler) StartSessionHandler(c *gin.Context) {
	var input struct {
		Draft *models.AppointmentDraft `json:"draft"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	snapshot, err := h.Service.StartSession(c.Request.Context(), input.Draft)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to start session: %v", err)})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ApplyEditHandler applies one field edit and returns the reconciled draft.
func (h *SchedulingHandler) ApplyEditHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	var edit scheduling.EditRequest
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	snapshot, err := h.Service.ApplyEdit(c.Request.Context(), sessionID, edit)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetSessionHandler returns the current draft, check state and verdict.
func (h *SchedulingHandler) GetSessionHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	snapshot, err := h.Service.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SubmitHandler runs the final availability gate and books the appointment.
func (h *SchedulingHandler) SubmitHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	result, err := h.Service.Submit(c.Request.Context(), sessionID)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	if !result.Ok {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// WaitlistHandler escapes a conflicted draft onto the provider's waitlist.
func (h *SchedulingHandler) WaitlistHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	entry, err := h.Service.JoinWaitlist(c.Request.Context(), sessionID)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"waitlistEntry": entry})
}

// CancelSessionHandler discards the draft session.
func (h *SchedulingHandler) CancelSessionHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if err := h.Service.CancelSession(c.Request.Context(), sessionID); err != nil {
		respondScheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": sessionID})
}

// respondScheduleError maps service errors onto HTTP statuses.
func respondScheduleError(c *gin.Context, err error) {
	var schedErr *scheduling.ScheduleError
	if errors.As(err, &schedErr) {
		switch schedErr.Code {
		case "sessionNotFound":
			c.JSON(http.StatusNotFound, gin.H{"error": schedErr.Message})
		case "invalidEdit":
			c.JSON(http.StatusBadRequest, gin.H{"error": schedErr.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": schedErr.Message})
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
