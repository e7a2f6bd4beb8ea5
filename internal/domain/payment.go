package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusReceived PaymentStatus = "received"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusReceived || s == PaymentStatusFailed
}

// Payment is one mobile-money charge attempt for a trip.
// Retries create a new Payment rather than reusing one.
type Payment struct {
	ID          string
	TripID      string
	Amount      decimal.Decimal
	PhoneNumber string
	Status      PaymentStatus
	ProviderRef string
	SessionID   string
	ReceiptCode string
	RawCallback json.RawMessage
	CreatedAt   time.Time
	ConfirmedAt time.Time
}
