package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matatu/internal/domain"
	"matatu/internal/service"
)

// VehicleHandler handles HTTP requests for vehicles.
type VehicleHandler struct {
	vehicleService *service.VehicleService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(vehicleService *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

// CreateVehicleRequest is the HTTP request body for registering a vehicle.
type CreateVehicleRequest struct {
	PlateNumber string `json:"plate_number"`
	Capacity    int    `json:"capacity"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// VehicleResponse is the HTTP response for vehicle data.
type VehicleResponse struct {
	ID          string `json:"id"`
	PlateNumber string `json:"plate_number"`
	Capacity    int    `json:"capacity"`
	OwnerID     string `json:"owner_id"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func toVehicleResponse(v *domain.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:          v.ID,
		PlateNumber: v.PlateNumber,
		Capacity:    v.Capacity,
		OwnerID:     v.OwnerID,
		CreatedAt:   timestamp(v.CreatedAt),
	}
}

// CreateVehicle handles POST /v1/vehicles
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	vehicle, err := h.vehicleService.CreateVehicle(c.Request.Context(), principalFrom(c), service.CreateVehicleRequest{
		PlateNumber: req.PlateNumber,
		Capacity:    req.Capacity,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toVehicleResponse(vehicle))
}

// ListVehicles handles GET /v1/vehicles
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	vehicles, err := h.vehicleService.ListVehicles(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		resp = append(resp, toVehicleResponse(v))
	}
	respondJSON(c, http.StatusOK, gin.H{"vehicles": resp})
}
