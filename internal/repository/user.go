package repository

import (
	"context"

	"matatu/internal/domain"
)

// UserRepository defines the persistence operations for users.
type UserRepository interface {
	// Create persists a new user. Returns ErrDuplicate if the phone is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByPhone retrieves a user by canonical phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)

	// Count returns the number of registered users.
	Count(ctx context.Context) (int, error)
}
