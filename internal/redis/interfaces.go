package redis

import (
	"context"
	"time"

	"matatu/internal/domain"
)

// FareCacheInterface defines the interface for route fare caching.
type FareCacheInterface interface {
	GetRouteFares(ctx context.Context, routeID string) ([]domain.FareRule, bool, error)
	SetRouteFares(ctx context.Context, routeID string, rules []domain.FareRule) error
	InvalidateRouteFares(ctx context.Context, routeID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquirePaymentLock(ctx context.Context, tripID, phone string, ttl time.Duration) (*Lock, error)
	Release(ctx context.Context, lock *Lock) error
	ClearPaymentLock(ctx context.Context, tripID, phone string) error
}

// Ensure concrete types implement interfaces.
var (
	_ FareCacheInterface = (*CacheStore)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
)
