package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matatu/internal/domain"
	"matatu/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTripRequest is the HTTP request body for recording a trip.
type CreateTripRequest struct {
	RouteID   string `json:"route_id"`
	VehicleID string `json:"vehicle_id"`
	DriverID  string `json:"driver_id"`
	FareType  string `json:"fare_type"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	ID              string `json:"id"`
	RouteID         string `json:"route_id"`
	VehicleID       string `json:"vehicle_id"`
	ConductorID     string `json:"conductor_id"`
	DriverID        string `json:"driver_id"`
	FareType        string `json:"fare_type"`
	PassengerCount  int    `json:"passenger_count"`
	TotalAmount     string `json:"total_amount"`
	Status          string `json:"status"`
	DriverConfirmed bool   `json:"driver_confirmed"`
	TripDate        string `json:"trip_date"`
}

// ConfirmTripResponse is the HTTP response for a driver confirmation.
type ConfirmTripResponse struct {
	Trip  TripResponse   `json:"trip"`
	Split *SplitResponse `json:"revenue_split,omitempty"`
}

func toTripResponse(t *domain.Trip) TripResponse {
	return TripResponse{
		ID:              t.ID,
		RouteID:         t.RouteID,
		VehicleID:       t.VehicleID,
		ConductorID:     t.ConductorID,
		DriverID:        t.DriverID,
		FareType:        string(t.FareType),
		PassengerCount:  t.PassengerCount,
		TotalAmount:     money(t.TotalAmount),
		Status:          string(t.Status),
		DriverConfirmed: t.DriverConfirmed,
		TripDate:        timestamp(t.TripDate),
	}
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), principalFrom(c), service.CreateTripRequest{
		RouteID:   req.RouteID,
		VehicleID: req.VehicleID,
		DriverID:  req.DriverID,
		FareType:  req.FareType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(trip))
}

// ListTrips handles GET /v1/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.tripService.ListTripsForUser(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		resp = append(resp, toTripResponse(t))
	}
	respondJSON(c, http.StatusOK, gin.H{"trips": resp})
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// ConfirmTrip handles POST /v1/trips/:id/confirm
func (h *TripHandler) ConfirmTrip(c *gin.Context) {
	result, err := h.tripService.ConfirmTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ConfirmTripResponse{Trip: toTripResponse(result.Trip)}
	if result.Split != nil {
		split := toSplitResponse(result.Split)
		resp.Split = &split
	}
	respondJSON(c, http.StatusOK, resp)
}
