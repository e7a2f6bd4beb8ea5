package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"matatu/internal/domain"
)

// SplitFilter restricts a revenue split listing. Empty fields are ignored.
type SplitFilter struct {
	OwnerID     string
	DriverID    string
	ConductorID string
}

// RevenueSplitRepository defines the persistence operations for revenue splits.
type RevenueSplitRepository interface {
	// Create persists a new split. Returns ErrDuplicate if the trip already has one.
	Create(ctx context.Context, split *domain.RevenueSplit) error

	// GetByID retrieves a split by ID.
	GetByID(ctx context.Context, id string) (*domain.RevenueSplit, error)

	// GetByTripID retrieves the split of a trip.
	GetByTripID(ctx context.Context, tripID string) (*domain.RevenueSplit, error)

	// List retrieves splits matching the filter, newest first.
	List(ctx context.Context, filter SplitFilter) ([]*domain.RevenueSplit, error)

	// Summarize totals the splits matching the filter whose trip has a
	// received payment.
	Summarize(ctx context.Context, filter SplitFilter) (*domain.RevenueSummary, error)

	// EarnedBy sums userID's shares of splits whose trip has a received payment.
	EarnedBy(ctx context.Context, userID string) (decimal.Decimal, error)
}
