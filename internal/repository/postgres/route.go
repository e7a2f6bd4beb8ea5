package postgres

import (
	"context"
	"database/sql"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// RouteRepository is a PostgreSQL implementation of repository.RouteRepository.
type RouteRepository struct {
	db *sql.DB
}

// NewRouteRepository creates a new PostgreSQL route repository.
func NewRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Create persists a route together with its fare rules. Callers wanting
// atomicity run it inside a unit of work.
func (r *RouteRepository) Create(ctx context.Context, route *domain.Route) error {
	q := conn(ctx, r.db)

	query := `
		INSERT INTO routes (id, name, origin, destination, distance_km)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	var distance sql.NullFloat64
	if route.DistanceKm != nil {
		distance = sql.NullFloat64{Float64: *route.DistanceKm, Valid: true}
	}

	if err := q.QueryRowContext(ctx, query,
		route.ID, route.Name, route.Origin, route.Destination, distance,
	).Scan(&route.CreatedAt); err != nil {
		return mapError(err)
	}

	for i := range route.FareRules {
		rule := &route.FareRules[i]
		rule.RouteID = route.ID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO fare_rules (id, route_id, fare_type, amount) VALUES ($1, $2, $3, $4)`,
			rule.ID, rule.RouteID, rule.FareType, rule.Amount,
		); err != nil {
			return mapError(err)
		}
	}

	return nil
}

// GetByID retrieves a route with its fare rules.
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	query := `
		SELECT id, name, origin, destination, distance_km, created_at
		FROM routes WHERE id = $1
	`

	route, err := scanRoute(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}

	rules, err := r.listRules(ctx, id)
	if err != nil {
		return nil, err
	}
	route.FareRules = rules

	return route, nil
}

// List retrieves all routes with their fare rules.
func (r *RouteRepository) List(ctx context.Context) ([]*domain.Route, error) {
	q := conn(ctx, r.db)

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, origin, destination, distance_km, created_at
		FROM routes ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []*domain.Route
	byID := make(map[string]*domain.Route)
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
		byID[route.ID] = route
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ruleRows, err := q.QueryContext(ctx, `
		SELECT id, route_id, fare_type, amount
		FROM fare_rules ORDER BY route_id, fare_type
	`)
	if err != nil {
		return nil, err
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var rule domain.FareRule
		if err := ruleRows.Scan(&rule.ID, &rule.RouteID, &rule.FareType, &rule.Amount); err != nil {
			return nil, err
		}
		if route, ok := byID[rule.RouteID]; ok {
			route.FareRules = append(route.FareRules, rule)
		}
	}

	return routes, ruleRows.Err()
}

// GetFareRules retrieves the fare rules of a route.
func (r *RouteRepository) GetFareRules(ctx context.Context, routeID string) ([]domain.FareRule, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM routes WHERE id = $1)`, routeID,
	).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}

	return r.listRules(ctx, routeID)
}

// UpsertFareRule inserts or replaces the rule for (route, fare type).
func (r *RouteRepository) UpsertFareRule(ctx context.Context, rule *domain.FareRule) error {
	query := `
		INSERT INTO fare_rules (id, route_id, fare_type, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (route_id, fare_type) DO UPDATE SET amount = EXCLUDED.amount
		RETURNING id
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		rule.ID, rule.RouteID, rule.FareType, rule.Amount,
	).Scan(&rule.ID)
	return mapError(err)
}

func (r *RouteRepository) listRules(ctx context.Context, routeID string) ([]domain.FareRule, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, route_id, fare_type, amount
		FROM fare_rules WHERE route_id = $1 ORDER BY fare_type
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.FareRule
	for rows.Next() {
		var rule domain.FareRule
		if err := rows.Scan(&rule.ID, &rule.RouteID, &rule.FareType, &rule.Amount); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (*domain.Route, error) {
	var route domain.Route
	var distance sql.NullFloat64
	if err := row.Scan(
		&route.ID,
		&route.Name,
		&route.Origin,
		&route.Destination,
		&distance,
		&route.CreatedAt,
	); err != nil {
		return nil, err
	}
	if distance.Valid {
		d := distance.Float64
		route.DistanceKm = &d
	}
	return &route, nil
}

// Ensure RouteRepository implements repository.RouteRepository.
var _ repository.RouteRepository = (*RouteRepository)(nil)
