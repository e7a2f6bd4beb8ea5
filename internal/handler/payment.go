package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"matatu/internal/domain"
	"matatu/internal/service"
)

// maxCallbackBytes bounds the callback body read from the provider.
const maxCallbackBytes = 1 << 20

// PaymentHandler handles HTTP requests for payments and provider callbacks.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// InitiatePaymentRequest is the HTTP request body for an STK push.
type InitiatePaymentRequest struct {
	TripID      string `json:"trip_id"`
	PhoneNumber string `json:"phone_number"`
}

// InitiatePaymentResponse identifies the payment that was started.
type InitiatePaymentResponse struct {
	PaymentID string `json:"payment_id"`
	SessionID string `json:"session_id,omitempty"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// PaymentResponse is the HTTP response for payment data.
type PaymentResponse struct {
	ID          string `json:"id"`
	TripID      string `json:"trip_id"`
	Amount      string `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	ReceiptCode string `json:"receipt_code,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		TripID:      p.TripID,
		Amount:      money(p.Amount),
		PhoneNumber: p.PhoneNumber,
		Status:      string(p.Status),
		ProviderRef: p.ProviderRef,
		SessionID:   p.SessionID,
		ReceiptCode: p.ReceiptCode,
		CreatedAt:   timestamp(p.CreatedAt),
		ConfirmedAt: timestamp(p.ConfirmedAt),
	}
}

// InitiatePayment handles POST /v1/payments
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.TripID == "" {
		badRequest(c, "trip_id is required")
		return
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), principalFrom(c), req.TripID, req.PhoneNumber)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, InitiatePaymentResponse{
		PaymentID: result.PaymentID,
		SessionID: result.SessionID,
		Reference: result.Reference,
		Status:    string(domain.PaymentStatusPending),
	})
}

// Callback handles POST /v1/payments/callback. The provider always gets
// 200 so it stops retrying; reconciliation happens off the request path.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		_ = c.Error(err)
		respondJSON(c, http.StatusOK, gin.H{"ack": true})
		return
	}

	jobID := h.paymentService.HandleProviderCallback(c.Request.Context(), body)
	respondJSON(c, http.StatusOK, gin.H{"ack": true, "id": jobID})
}

// GetPayment handles GET /v1/payments/:id. The id may also be a session id
// or provider reference.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPaymentStatus(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// ListTripPayments handles GET /v1/trips/:id/payments
func (h *PaymentHandler) ListTripPayments(c *gin.Context) {
	payments, err := h.paymentService.ListPaymentsForTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	respondJSON(c, http.StatusOK, gin.H{"payments": resp})
}
