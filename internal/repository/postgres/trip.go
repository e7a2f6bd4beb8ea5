package postgres

import (
	"context"
	"database/sql"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

// The vehicle owner is joined in so visibility checks need no second query.
const tripSelect = `
	SELECT t.id, t.route_id, t.vehicle_id, t.conductor_id, t.driver_id, v.owner_id,
		t.fare_type, t.passenger_count, t.total_amount, t.status, t.driver_confirmed,
		t.trip_date, t.created_at
	FROM trips t
	JOIN vehicles v ON v.id = t.vehicle_id
`

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (id, route_id, vehicle_id, conductor_id, driver_id, fare_type,
			passenger_count, total_amount, status, driver_confirmed, trip_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		trip.ID,
		trip.RouteID,
		trip.VehicleID,
		trip.ConductorID,
		trip.DriverID,
		trip.FareType,
		trip.PassengerCount,
		trip.TotalAmount,
		trip.Status,
		trip.DriverConfirmed,
		trip.TripDate,
	).Scan(&trip.CreatedAt)

	return mapError(err)
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	trip, err := scanTrip(conn(ctx, r.db).QueryRowContext(ctx, tripSelect+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return trip, nil
}

// GetByIDForUpdate retrieves a trip and locks its row.
func (r *TripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := tripSelect + ` WHERE t.id = $1 FOR UPDATE OF t`
	trip, err := scanTrip(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return trip, nil
}

// List retrieves trips matching the filter, newest first.
func (r *TripRepository) List(ctx context.Context, filter repository.TripFilter) ([]*domain.Trip, error) {
	query := tripSelect + `
		WHERE ($1 = '' OR t.conductor_id = $1)
		  AND ($2 = '' OR t.driver_id = $2)
		  AND ($3 = '' OR v.owner_id = $3)
		ORDER BY t.created_at DESC
		LIMIT 200
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query,
		filter.ConductorID, filter.DriverID, filter.OwnerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// Update updates the status and driver confirmation of a trip.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET status = $1, driver_confirmed = $2
		WHERE id = $3
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		trip.Status,
		trip.DriverConfirmed,
		trip.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	if err := row.Scan(
		&trip.ID,
		&trip.RouteID,
		&trip.VehicleID,
		&trip.ConductorID,
		&trip.DriverID,
		&trip.OwnerID,
		&trip.FareType,
		&trip.PassengerCount,
		&trip.TotalAmount,
		&trip.Status,
		&trip.DriverConfirmed,
		&trip.TripDate,
		&trip.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
