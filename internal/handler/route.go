package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"matatu/internal/domain"
	"matatu/internal/service"
)

// RouteHandler handles HTTP requests for routes and their fares.
type RouteHandler struct {
	fareService *service.FareService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(fareService *service.FareService) *RouteHandler {
	return &RouteHandler{fareService: fareService}
}

// FareRequest sets the price for one fare type. Amount accepts a JSON
// number or string.
type FareRequest struct {
	FareType string          `json:"fare_type"`
	Amount   decimal.Decimal `json:"amount"`
}

// CreateRouteRequest is the HTTP request body for creating a route.
type CreateRouteRequest struct {
	Name        string        `json:"name"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	DistanceKm  *float64      `json:"distance_km,omitempty"`
	Fares       []FareRequest `json:"fares"`
}

// FareResponse is one fare rule.
type FareResponse struct {
	ID       string `json:"id"`
	FareType string `json:"fare_type"`
	Amount   string `json:"amount"`
}

// RouteResponse is the HTTP response for route data.
type RouteResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Origin      string         `json:"origin"`
	Destination string         `json:"destination"`
	DistanceKm  *float64       `json:"distance_km,omitempty"`
	Fares       []FareResponse `json:"fares"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

func toFareResponse(r domain.FareRule) FareResponse {
	return FareResponse{ID: r.ID, FareType: string(r.FareType), Amount: money(r.Amount)}
}

func toRouteResponse(r *domain.Route) RouteResponse {
	fares := make([]FareResponse, 0, len(r.FareRules))
	for _, rule := range r.FareRules {
		fares = append(fares, toFareResponse(rule))
	}
	return RouteResponse{
		ID:          r.ID,
		Name:        r.Name,
		Origin:      r.Origin,
		Destination: r.Destination,
		DistanceKm:  r.DistanceKm,
		Fares:       fares,
		CreatedAt:   timestamp(r.CreatedAt),
	}
}

// CreateRoute handles POST /v1/routes
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	fares := make([]service.FareInput, 0, len(req.Fares))
	for _, f := range req.Fares {
		fares = append(fares, service.FareInput{FareType: f.FareType, Amount: f.Amount})
	}

	route, err := h.fareService.CreateRoute(c.Request.Context(), principalFrom(c), service.CreateRouteRequest{
		Name:        req.Name,
		Origin:      req.Origin,
		Destination: req.Destination,
		DistanceKm:  req.DistanceKm,
		Fares:       fares,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRouteResponse(route))
}

// ListRoutes handles GET /v1/routes
func (h *RouteHandler) ListRoutes(c *gin.Context) {
	routes, err := h.fareService.ListRoutes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		resp = append(resp, toRouteResponse(r))
	}
	respondJSON(c, http.StatusOK, gin.H{"routes": resp})
}

// GetRoute handles GET /v1/routes/:id
func (h *RouteHandler) GetRoute(c *gin.Context) {
	route, err := h.fareService.GetRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRouteResponse(route))
}

// SetFare handles PUT /v1/routes/:id/fares
func (h *RouteHandler) SetFare(c *gin.Context) {
	var req FareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	rule, err := h.fareService.SetFareRule(c.Request.Context(), principalFrom(c), c.Param("id"), service.FareInput{
		FareType: req.FareType,
		Amount:   req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toFareResponse(*rule))
}
