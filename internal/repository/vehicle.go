package repository

import (
	"context"

	"matatu/internal/domain"
)

// VehicleRepository defines the persistence operations for vehicles.
type VehicleRepository interface {
	// Create persists a new vehicle. Returns ErrDuplicate if the plate is taken.
	Create(ctx context.Context, vehicle *domain.Vehicle) error

	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// List retrieves vehicles, optionally restricted to one owner.
	List(ctx context.Context, ownerID string) ([]*domain.Vehicle, error)
}
