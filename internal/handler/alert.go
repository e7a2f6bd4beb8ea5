package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matatu/internal/service"
)

// AlertHandler handles HTTP requests for in-app alerts.
type AlertHandler struct {
	notifications *service.NotificationService
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(notifications *service.NotificationService) *AlertHandler {
	return &AlertHandler{notifications: notifications}
}

// AlertResponse is the HTTP response for an alert.
type AlertResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ListAlerts handles GET /v1/alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.notifications.ListAlerts(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, AlertResponse{
			ID:        a.ID,
			Message:   a.Message,
			Type:      string(a.Type),
			Read:      a.Read,
			CreatedAt: timestamp(a.CreatedAt),
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"alerts": resp})
}

// MarkRead handles POST /v1/alerts/:id/read
func (h *AlertHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkAlertRead(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "read": true})
}
