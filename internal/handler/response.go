package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"matatu/internal/domain"
	"matatu/internal/middleware"
	"matatu/internal/repository"
	"matatu/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	PaymentID string `json:"payment_id,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Internal errors are not echoed to the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	_ = c.Error(err)

	resp := ErrorResponse{Error: err.Error()}
	if code == http.StatusInternalServerError {
		resp.Error = "internal error"
	}

	var dup *service.DuplicateRequestError
	if errors.As(err, &dup) {
		resp.PaymentID = dup.PaymentID
	}
	c.JSON(code, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a body that failed to bind.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidFareType),
		errors.Is(err, service.ErrInvalidPhoneNumber),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidDriver),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrSplitExists),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadyConfirmed),
		errors.Is(err, service.ErrWithdrawalProcessed),
		errors.Is(err, service.ErrPhoneTaken),
		errors.Is(err, service.ErrPlateTaken),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, service.ErrUpstreamFailure):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// principalFrom returns the authenticated caller.
func principalFrom(c *gin.Context) domain.Principal {
	return middleware.PrincipalFrom(c)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
