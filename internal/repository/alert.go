package repository

import (
	"context"

	"matatu/internal/domain"
)

// AlertRepository defines the persistence operations for alerts.
type AlertRepository interface {
	// Create persists a new alert.
	Create(ctx context.Context, alert *domain.Alert) error

	// ListByUser retrieves the alerts of a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error)

	// MarkRead flags the alert as read. Returns ErrNotFound if the alert
	// does not exist or belongs to another user.
	MarkRead(ctx context.Context, id, userID string) error
}
