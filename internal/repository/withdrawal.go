package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"matatu/internal/domain"
)

// WithdrawalRepository defines the persistence operations for withdrawals.
type WithdrawalRepository interface {
	// LockWallet serializes balance checks for userID until the enclosing
	// unit of work ends.
	LockWallet(ctx context.Context, userID string) error

	// Create persists a new withdrawal.
	Create(ctx context.Context, w *domain.Withdrawal) error

	// GetByIDForUpdate retrieves a withdrawal and locks it for the current
	// unit of work.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Withdrawal, error)

	// Update stores the status and review fields of a withdrawal.
	Update(ctx context.Context, w *domain.Withdrawal) error

	// List retrieves the withdrawals of userID, or of everyone when userID
	// is empty, newest first.
	List(ctx context.Context, userID string) ([]*domain.Withdrawal, error)

	// Reserved sums userID's pending and approved withdrawals.
	Reserved(ctx context.Context, userID string) (decimal.Decimal, error)
}
