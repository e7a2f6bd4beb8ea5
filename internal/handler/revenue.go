package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matatu/internal/domain"
	"matatu/internal/service"
)

// RevenueHandler handles HTTP requests for revenue splits.
type RevenueHandler struct {
	revenueService *service.RevenueService
}

// NewRevenueHandler creates a new RevenueHandler.
func NewRevenueHandler(revenueService *service.RevenueService) *RevenueHandler {
	return &RevenueHandler{revenueService: revenueService}
}

// SplitResponse is the HTTP response for a revenue split.
type SplitResponse struct {
	ID                string `json:"id"`
	TripID            string `json:"trip_id"`
	TotalAmount       string `json:"total_amount"`
	OwnerAmount       string `json:"owner_amount"`
	DriverAmount      string `json:"driver_amount"`
	ConductorAmount   string `json:"conductor_amount"`
	SaccoAmount       string `json:"sacco_amount"`
	MaintenanceAmount string `json:"maintenance_amount"`
	IntegrityHash     string `json:"integrity_hash"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// VerifyResponse reports whether a stored split still matches its fingerprint.
type VerifyResponse struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
}

// SummaryResponse totals the splits of paid trips. The percentages divide
// the owner, driver and conductor amounts among those three.
type SummaryResponse struct {
	Trips             int    `json:"trips"`
	TotalAmount       string `json:"total_amount"`
	OwnerAmount       string `json:"owner_amount"`
	DriverAmount      string `json:"driver_amount"`
	ConductorAmount   string `json:"conductor_amount"`
	SaccoAmount       string `json:"sacco_amount"`
	MaintenanceAmount string `json:"maintenance_amount"`
	OwnerPercent      int64  `json:"owner"`
	DriverPercent     int64  `json:"driver"`
	ConductorPercent  int64  `json:"conductor"`
}

func toSplitResponse(s *domain.RevenueSplit) SplitResponse {
	return SplitResponse{
		ID:                s.ID,
		TripID:            s.TripID,
		TotalAmount:       money(s.TotalAmount),
		OwnerAmount:       money(s.OwnerAmount),
		DriverAmount:      money(s.DriverAmount),
		ConductorAmount:   money(s.ConductorAmount),
		SaccoAmount:       money(s.SaccoAmount),
		MaintenanceAmount: money(s.MaintenanceAmount),
		IntegrityHash:     s.IntegrityHash,
		CreatedAt:         timestamp(s.CreatedAt),
	}
}

// ListSplits handles GET /v1/revenue-splits
func (h *RevenueHandler) ListSplits(c *gin.Context) {
	splits, err := h.revenueService.ListSplits(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]SplitResponse, 0, len(splits))
	for _, s := range splits {
		resp = append(resp, toSplitResponse(s))
	}
	respondJSON(c, http.StatusOK, gin.H{"revenue_splits": resp})
}

// GetSplit handles GET /v1/revenue-splits/:id
func (h *RevenueHandler) GetSplit(c *gin.Context) {
	split, err := h.revenueService.GetSplit(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSplitResponse(split))
}

// VerifySplit handles GET /v1/revenue-splits/:id/verify
func (h *RevenueHandler) VerifySplit(c *gin.Context) {
	id := c.Param("id")
	valid, err := h.revenueService.VerifySplit(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, VerifyResponse{ID: id, Valid: valid})
}

// Summary handles GET /v1/analytics/revenue-split
func (h *RevenueHandler) Summary(c *gin.Context) {
	sum, err := h.revenueService.Summary(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	owner, driver, conductor := sum.PayeeShares()
	respondJSON(c, http.StatusOK, SummaryResponse{
		Trips:             sum.Trips,
		TotalAmount:       money(sum.Total),
		OwnerAmount:       money(sum.Owner),
		DriverAmount:      money(sum.Driver),
		ConductorAmount:   money(sum.Conductor),
		SaccoAmount:       money(sum.Sacco),
		MaintenanceAmount: money(sum.Maintenance),
		OwnerPercent:      owner,
		DriverPercent:     driver,
		ConductorPercent:  conductor,
	})
}
