package repository

import (
	"context"

	"matatu/internal/domain"
)

// RouteRepository defines the persistence operations for routes and fare rules.
type RouteRepository interface {
	// Create persists a route together with its fare rules.
	Create(ctx context.Context, route *domain.Route) error

	// GetByID retrieves a route with its fare rules.
	GetByID(ctx context.Context, id string) (*domain.Route, error)

	// List retrieves all routes with their fare rules.
	List(ctx context.Context) ([]*domain.Route, error)

	// GetFareRules retrieves the fare rules of a route.
	// Returns ErrNotFound if the route does not exist.
	GetFareRules(ctx context.Context, routeID string) ([]domain.FareRule, error)

	// UpsertFareRule inserts or replaces the rule for (route, fare type).
	UpsertFareRule(ctx context.Context, rule *domain.FareRule) error
}
