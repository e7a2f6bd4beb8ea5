package domain

import "time"

// DefaultVehicleCapacity is the seat count of a standard matatu.
const DefaultVehicleCapacity = 14

// Vehicle represents a matatu registered to an owner.
type Vehicle struct {
	ID          string
	PlateNumber string
	Capacity    int
	OwnerID     string
	CreatedAt   time.Time
}
