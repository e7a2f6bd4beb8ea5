package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusPending   TripStatus = "pending"
	TripStatusConfirmed TripStatus = "confirmed"
	TripStatusCompleted TripStatus = "completed"
)

var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusPending:   {TripStatusConfirmed, TripStatusCompleted},
	TripStatusConfirmed: {TripStatusCompleted},
	TripStatusCompleted: {},
}

// CanTransitionTo reports whether a trip may move from s to next.
// The lifecycle is linear; there are no back-transitions.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Trip represents one fare-collection event for a vehicle on a route.
type Trip struct {
	ID              string
	RouteID         string
	VehicleID       string
	ConductorID     string
	DriverID        string
	OwnerID         string // owner of the vehicle, loaded with the trip
	FareType        FareType
	PassengerCount  int
	TotalAmount     decimal.Decimal // snapshotted at creation
	Status          TripStatus
	DriverConfirmed bool
	TripDate        time.Time
	CreatedAt       time.Time
}

// VisibleTo reports whether the principal may read the trip.
func (t *Trip) VisibleTo(p Principal) bool {
	switch p.Role {
	case RoleConductor:
		return t.ConductorID == p.UserID
	case RoleDriver:
		return t.DriverID == p.UserID
	case RoleOwner:
		return t.OwnerID == p.UserID
	default:
		return p.Role.IsAdmin()
	}
}
