package repository

import (
	"context"
	"time"

	"matatu/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIDForUpdate retrieves a payment and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error)

	// GetBySessionID retrieves a payment by gateway checkout/session id.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)

	// GetByProviderRef retrieves a payment by provider reference.
	GetByProviderRef(ctx context.Context, ref string) (*domain.Payment, error)

	// LatestPendingForTrip retrieves the newest pending payment of a trip
	// created at or after since.
	LatestPendingForTrip(ctx context.Context, tripID string, since time.Time) (*domain.Payment, error)

	// FindPending retrieves the newest pending payment for a trip and phone
	// created at or after since.
	FindPending(ctx context.Context, tripID, phone string, since time.Time) (*domain.Payment, error)

	// HasReceived reports whether the trip has a received payment.
	HasReceived(ctx context.Context, tripID string) (bool, error)

	// ListByTrip retrieves all payments of a trip, newest first.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.Payment, error)

	// Update updates the mutable fields of a payment.
	Update(ctx context.Context, payment *domain.Payment) error
}
