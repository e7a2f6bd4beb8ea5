package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// FareLookup resolves the per-seat fare of a route. *FareService satisfies it.
type FareLookup interface {
	LookupFare(ctx context.Context, routeID string, fareType domain.FareType) (decimal.Decimal, error)
}

// TripService handles trip operations.
type TripService struct {
	tripRepo    repository.TripRepository
	vehicleRepo repository.VehicleRepository
	userRepo    repository.UserRepository
	fares       FareLookup
	revenue     *RevenueService
	uow         repository.UnitOfWork
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewTripService creates a new TripService.
func NewTripService(
	tripRepo repository.TripRepository,
	vehicleRepo repository.VehicleRepository,
	userRepo repository.UserRepository,
	fares FareLookup,
	revenue *RevenueService,
	uow repository.UnitOfWork,
	log logrus.FieldLogger,
) *TripService {
	return &TripService{
		tripRepo:    tripRepo,
		vehicleRepo: vehicleRepo,
		userRepo:    userRepo,
		fares:       fares,
		revenue:     revenue,
		uow:         uow,
		log:         log,
		now:         time.Now,
	}
}

// CreateTripRequest contains the parameters for recording a trip.
type CreateTripRequest struct {
	RouteID   string
	VehicleID string
	DriverID  string
	FareType  string
}

// CreateTrip records a pending trip for the calling conductor. The total is
// the route fare times the vehicle's capacity, fixed at creation.
func (s *TripService) CreateTrip(ctx context.Context, p domain.Principal, req CreateTripRequest) (*domain.Trip, error) {
	if p.Role != domain.RoleConductor {
		return nil, ErrForbidden
	}

	fareType, ok := domain.ParseFareType(req.FareType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFareType, req.FareType)
	}

	if req.RouteID == "" || req.VehicleID == "" || req.DriverID == "" {
		return nil, fmt.Errorf("%w: route, vehicle and driver are required", ErrValidation)
	}

	vehicle, err := s.vehicleRepo.GetByID(ctx, req.VehicleID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	driver, err := s.userRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidDriver
		}
		return nil, err
	}
	if driver.Role != domain.RoleDriver {
		return nil, ErrInvalidDriver
	}

	fare, err := s.fares.LookupFare(ctx, req.RouteID, fareType)
	if err != nil {
		if errors.Is(err, ErrFareRuleNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFareType, err)
		}
		return nil, err
	}

	now := s.now()
	trip := &domain.Trip{
		ID:             uuid.New().String(),
		RouteID:        req.RouteID,
		VehicleID:      vehicle.ID,
		ConductorID:    p.UserID,
		DriverID:       driver.ID,
		OwnerID:        vehicle.OwnerID,
		FareType:       fareType,
		PassengerCount: vehicle.Capacity,
		TotalAmount:    fare.Mul(decimal.NewFromInt(int64(vehicle.Capacity))).Round(2),
		Status:         domain.TripStatusPending,
		TripDate:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		CreatedAt:      now,
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":      trip.ID,
		"route_id":     trip.RouteID,
		"vehicle_id":   trip.VehicleID,
		"fare_type":    trip.FareType,
		"total_amount": trip.TotalAmount.StringFixed(2),
	}).Info("trip created")

	return trip, nil
}

// ConfirmResult is the outcome of a driver confirmation.
type ConfirmResult struct {
	Trip  *domain.Trip
	Split *domain.RevenueSplit
}

// ConfirmTrip is the assigned driver's confirmation. It confirms the trip,
// creates its revenue split and completes it in one transaction; payees are
// notified after commit. A trip already completed by a received payment is
// still confirmed and split. Each trip is confirmed once.
func (s *TripService) ConfirmTrip(ctx context.Context, p domain.Principal, tripID string) (*ConfirmResult, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if p.Role != domain.RoleDriver || trip.DriverID != p.UserID {
		return nil, ErrForbidden
	}

	var result ConfirmResult
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.tripRepo.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return mapRepoError(err)
		}

		if locked.DriverConfirmed {
			return ErrAlreadyConfirmed
		}

		// A received payment may already have completed the trip.
		locked.DriverConfirmed = true
		if locked.Status == domain.TripStatusPending {
			err = s.transition(ctx, locked, domain.TripStatusConfirmed)
		} else {
			err = s.tripRepo.Update(ctx, locked)
		}
		if err != nil {
			return err
		}

		split, err := s.revenue.CreateSplit(ctx, locked.ID)
		if err != nil {
			return err
		}

		if locked.Status != domain.TripStatusCompleted {
			if err := s.transition(ctx, locked, domain.TripStatusCompleted); err != nil {
				return err
			}
		}

		result = ConfirmResult{Trip: locked, Split: split}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":  tripID,
		"split_id": result.Split.ID,
	}).Info("trip confirmed")

	s.revenue.NotifyPayees(ctx, result.Split)

	return &result, nil
}

// MarkCompleted moves a trip to completed. Completing a completed trip is a
// no-op. It joins the caller's unit of work when ctx carries one.
func (s *TripService) MarkCompleted(ctx context.Context, tripID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context) error {
		trip, err := s.tripRepo.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return mapRepoError(err)
		}

		if trip.Status == domain.TripStatusCompleted {
			return nil
		}

		return s.transition(ctx, trip, domain.TripStatusCompleted)
	})
}

func (s *TripService) transition(ctx context.Context, trip *domain.Trip, next domain.TripStatus) error {
	if !trip.Status.CanTransitionTo(next) {
		return fmt.Errorf("trip %s cannot move from %s to %s", trip.ID, trip.Status, next)
	}
	trip.Status = next
	return s.tripRepo.Update(ctx, trip)
}

// ListTripsForUser returns the trips visible to the principal, newest first.
func (s *TripService) ListTripsForUser(ctx context.Context, p domain.Principal) ([]*domain.Trip, error) {
	var filter repository.TripFilter
	switch p.Role {
	case domain.RoleConductor:
		filter.ConductorID = p.UserID
	case domain.RoleDriver:
		filter.DriverID = p.UserID
	case domain.RoleOwner:
		filter.OwnerID = p.UserID
	case domain.RoleSacco, domain.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	return s.tripRepo.List(ctx, filter)
}

// GetTrip returns a trip if the principal may see it.
func (s *TripService) GetTrip(ctx context.Context, p domain.Principal, tripID string) (*domain.Trip, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !trip.VisibleTo(p) {
		return nil, ErrForbidden
	}
	return trip, nil
}
