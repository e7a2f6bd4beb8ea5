package repository

import (
	"context"

	"matatu/internal/domain"
)

// TripFilter restricts a trip listing. Empty fields are ignored.
type TripFilter struct {
	ConductorID string
	DriverID    string
	OwnerID     string
}

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByIDForUpdate retrieves a trip and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error)

	// List retrieves trips matching the filter, newest first.
	List(ctx context.Context, filter TripFilter) ([]*domain.Trip, error)

	// Update updates the status and driver confirmation of a trip.
	Update(ctx context.Context, trip *domain.Trip) error
}
