package domain

import "time"

// AlertType represents the kind of in-app alert.
type AlertType string

const (
	AlertTypeRevenueSplit    AlertType = "revenue_split"
	AlertTypePaymentReceived AlertType = "payment_received"
	AlertTypeWithdrawal      AlertType = "withdrawal"
)

// Alert is an in-app notification for a user.
type Alert struct {
	ID        string
	UserID    string
	Message   string
	Type      AlertType
	Read      bool
	CreatedAt time.Time
}
