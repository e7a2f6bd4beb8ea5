package postgres

import (
	"context"
	"database/sql"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	db *sql.DB
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Create persists a new vehicle.
func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, plate_number, capacity, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		v.ID, v.PlateNumber, v.Capacity, v.OwnerID,
	).Scan(&v.CreatedAt)
	return mapError(err)
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `
		SELECT id, plate_number, capacity, owner_id, created_at
		FROM vehicles WHERE id = $1
	`
	v, err := scanVehicle(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

// List retrieves vehicles, optionally restricted to one owner.
func (r *VehicleRepository) List(ctx context.Context, ownerID string) ([]*domain.Vehicle, error) {
	query := `
		SELECT id, plate_number, capacity, owner_id, created_at
		FROM vehicles
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY plate_number
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}

	return vehicles, rows.Err()
}

func scanVehicle(row rowScanner) (*domain.Vehicle, error) {
	var v domain.Vehicle
	if err := row.Scan(&v.ID, &v.PlateNumber, &v.Capacity, &v.OwnerID, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// Ensure VehicleRepository implements repository.VehicleRepository.
var _ repository.VehicleRepository = (*VehicleRepository)(nil)
