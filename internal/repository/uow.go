package repository

import "context"

// UnitOfWork runs fn inside a single database transaction. Repository calls
// made with the ctx passed to fn participate in that transaction. Nested
// calls reuse the outer transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
