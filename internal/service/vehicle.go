package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// VehicleService registers and lists matatus.
type VehicleService struct {
	vehicleRepo repository.VehicleRepository
	userRepo    repository.UserRepository
	log         logrus.FieldLogger
}

// NewVehicleService creates a new VehicleService.
func NewVehicleService(vehicleRepo repository.VehicleRepository, userRepo repository.UserRepository, log logrus.FieldLogger) *VehicleService {
	return &VehicleService{
		vehicleRepo: vehicleRepo,
		userRepo:    userRepo,
		log:         log,
	}
}

// CreateVehicleRequest contains the parameters for registering a vehicle.
type CreateVehicleRequest struct {
	PlateNumber string
	Capacity    int
	OwnerID     string
}

// CreateVehicle registers a vehicle. Owners register their own; sacco and
// admin users name the owner.
func (s *VehicleService) CreateVehicle(ctx context.Context, p domain.Principal, req CreateVehicleRequest) (*domain.Vehicle, error) {
	ownerID, err := s.resolveOwner(ctx, p, req.OwnerID)
	if err != nil {
		return nil, err
	}

	plate := NormalizePlate(req.PlateNumber)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate number is required", ErrValidation)
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = domain.DefaultVehicleCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}

	vehicle := &domain.Vehicle{
		ID:          uuid.New().String(),
		PlateNumber: plate,
		Capacity:    capacity,
		OwnerID:     ownerID,
	}

	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPlateTaken
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"vehicle_id": vehicle.ID,
		"plate":      vehicle.PlateNumber,
		"owner_id":   vehicle.OwnerID,
	}).Info("vehicle registered")

	return vehicle, nil
}

func (s *VehicleService) resolveOwner(ctx context.Context, p domain.Principal, requested string) (string, error) {
	switch {
	case p.Role == domain.RoleOwner:
		if requested != "" && requested != p.UserID {
			return "", ErrForbidden
		}
		return p.UserID, nil

	case p.Role.IsAdmin():
		if requested == "" {
			return "", fmt.Errorf("%w: owner is required", ErrValidation)
		}
		owner, err := s.userRepo.GetByID(ctx, requested)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", fmt.Errorf("%w: owner %s does not exist", ErrValidation, requested)
			}
			return "", err
		}
		if owner.Role != domain.RoleOwner {
			return "", fmt.Errorf("%w: user %s is not an owner", ErrValidation, requested)
		}
		return owner.ID, nil

	default:
		return "", ErrForbidden
	}
}

// ListVehicles returns the principal's vehicles if they are an owner, and
// every vehicle otherwise.
func (s *VehicleService) ListVehicles(ctx context.Context, p domain.Principal) ([]*domain.Vehicle, error) {
	if p.Role == domain.RoleOwner {
		return s.vehicleRepo.List(ctx, p.UserID)
	}
	return s.vehicleRepo.List(ctx, "")
}

// NormalizePlate upper-cases a plate and collapses its whitespace.
func NormalizePlate(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}
