package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// RevenueSplitRepository is a PostgreSQL implementation of repository.RevenueSplitRepository.
type RevenueSplitRepository struct {
	db *sql.DB
}

// NewRevenueSplitRepository creates a new PostgreSQL revenue split repository.
func NewRevenueSplitRepository(db *sql.DB) *RevenueSplitRepository {
	return &RevenueSplitRepository{db: db}
}

const splitSelect = `
	SELECT id, trip_id, total_amount, owner_amount, driver_amount, conductor_amount,
		sacco_amount, maintenance_amount, owner_id, driver_id, conductor_id,
		integrity_hash, created_at
	FROM revenue_splits
`

// Create persists a new split. The unique index on trip_id turns a second
// split for the same trip into repository.ErrDuplicate.
func (r *RevenueSplitRepository) Create(ctx context.Context, s *domain.RevenueSplit) error {
	query := `
		INSERT INTO revenue_splits (id, trip_id, total_amount, owner_amount, driver_amount,
			conductor_amount, sacco_amount, maintenance_amount, owner_id, driver_id,
			conductor_id, integrity_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		s.ID,
		s.TripID,
		s.TotalAmount,
		s.OwnerAmount,
		s.DriverAmount,
		s.ConductorAmount,
		s.SaccoAmount,
		s.MaintenanceAmount,
		s.OwnerID,
		s.DriverID,
		s.ConductorID,
		s.IntegrityHash,
	).Scan(&s.CreatedAt)

	return mapError(err)
}

// GetByID retrieves a split by ID.
func (r *RevenueSplitRepository) GetByID(ctx context.Context, id string) (*domain.RevenueSplit, error) {
	s, err := scanSplit(conn(ctx, r.db).QueryRowContext(ctx, splitSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// GetByTripID retrieves the split of a trip.
func (r *RevenueSplitRepository) GetByTripID(ctx context.Context, tripID string) (*domain.RevenueSplit, error) {
	s, err := scanSplit(conn(ctx, r.db).QueryRowContext(ctx, splitSelect+` WHERE trip_id = $1`, tripID))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// List retrieves splits matching the filter, newest first.
func (r *RevenueSplitRepository) List(ctx context.Context, filter repository.SplitFilter) ([]*domain.RevenueSplit, error) {
	query := splitSelect + `
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR driver_id = $2)
		  AND ($3 = '' OR conductor_id = $3)
		ORDER BY created_at DESC
		LIMIT 200
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query,
		filter.OwnerID, filter.DriverID, filter.ConductorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []*domain.RevenueSplit
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}

	return splits, rows.Err()
}

// paidTrip restricts a revenue_splits query aliased s to trips with a
// received payment.
const paidTrip = `EXISTS (
	SELECT 1 FROM payments p WHERE p.trip_id = s.trip_id AND p.status = 'received'
)`

// Summarize totals the splits matching the filter whose trip has a
// received payment.
func (r *RevenueSplitRepository) Summarize(ctx context.Context, filter repository.SplitFilter) (*domain.RevenueSummary, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(s.total_amount), 0),
			COALESCE(SUM(s.owner_amount), 0),
			COALESCE(SUM(s.driver_amount), 0),
			COALESCE(SUM(s.conductor_amount), 0),
			COALESCE(SUM(s.sacco_amount), 0),
			COALESCE(SUM(s.maintenance_amount), 0)
		FROM revenue_splits s
		WHERE ($1 = '' OR s.owner_id = $1)
		  AND ($2 = '' OR s.driver_id = $2)
		  AND ($3 = '' OR s.conductor_id = $3)
		  AND ` + paidTrip

	var sum domain.RevenueSummary
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		filter.OwnerID, filter.DriverID, filter.ConductorID,
	).Scan(
		&sum.Trips,
		&sum.Total,
		&sum.Owner,
		&sum.Driver,
		&sum.Conductor,
		&sum.Sacco,
		&sum.Maintenance,
	)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// EarnedBy sums userID's shares of splits whose trip has a received payment.
func (r *RevenueSplitRepository) EarnedBy(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN s.owner_id = $1 THEN s.owner_amount ELSE 0 END +
			CASE WHEN s.driver_id = $1 THEN s.driver_amount ELSE 0 END +
			CASE WHEN s.conductor_id = $1 THEN s.conductor_amount ELSE 0 END
		), 0)
		FROM revenue_splits s
		WHERE $1 IN (s.owner_id, s.driver_id, s.conductor_id)
		  AND ` + paidTrip

	var earned decimal.Decimal
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&earned); err != nil {
		return decimal.Zero, err
	}
	return earned, nil
}

func scanSplit(row rowScanner) (*domain.RevenueSplit, error) {
	var s domain.RevenueSplit
	if err := row.Scan(
		&s.ID,
		&s.TripID,
		&s.TotalAmount,
		&s.OwnerAmount,
		&s.DriverAmount,
		&s.ConductorAmount,
		&s.SaccoAmount,
		&s.MaintenanceAmount,
		&s.OwnerID,
		&s.DriverID,
		&s.ConductorID,
		&s.IntegrityHash,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// Ensure RevenueSplitRepository implements repository.RevenueSplitRepository.
var _ repository.RevenueSplitRepository = (*RevenueSplitRepository)(nil)
