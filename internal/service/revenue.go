package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// Allocation is the fraction of a trip's total owed to each payee.
type Allocation struct {
	Owner       decimal.Decimal
	Driver      decimal.Decimal
	Conductor   decimal.Decimal
	Sacco       decimal.Decimal
	Maintenance decimal.Decimal
}

// DefaultAllocation is 40/25/15/15/5.
var DefaultAllocation = Allocation{
	Owner:       decimal.RequireFromString("0.40"),
	Driver:      decimal.RequireFromString("0.25"),
	Conductor:   decimal.RequireFromString("0.15"),
	Sacco:       decimal.RequireFromString("0.15"),
	Maintenance: decimal.RequireFromString("0.05"),
}

// Validate checks that the fractions are non-negative and sum to one.
func (a Allocation) Validate() error {
	parts := []decimal.Decimal{a.Owner, a.Driver, a.Conductor, a.Sacco, a.Maintenance}
	sum := decimal.Zero
	for _, p := range parts {
		if p.IsNegative() {
			return fmt.Errorf("allocation share %s is negative", p)
		}
		sum = sum.Add(p)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("allocation sums to %s, want 1", sum)
	}
	return nil
}

// Shares is one trip total divided among the five payees.
type Shares struct {
	Owner       decimal.Decimal
	Driver      decimal.Decimal
	Conductor   decimal.Decimal
	Sacco       decimal.Decimal
	Maintenance decimal.Decimal
}

// Split divides total. The first four shares are rounded half-up to cents;
// maintenance takes the remainder so the five always sum to total exactly.
// For totals of a few cents half-up can overshoot, and the four shares are
// truncated instead so maintenance is never negative.
func (a Allocation) Split(total decimal.Decimal) Shares {
	total = total.Round(2)

	s := a.split(total, func(d decimal.Decimal) decimal.Decimal { return d.Round(2) })
	if s.Maintenance.IsNegative() {
		s = a.split(total, func(d decimal.Decimal) decimal.Decimal { return d.RoundDown(2) })
	}
	return s
}

func (a Allocation) split(total decimal.Decimal, round func(decimal.Decimal) decimal.Decimal) Shares {
	s := Shares{
		Owner:     round(total.Mul(a.Owner)),
		Driver:    round(total.Mul(a.Driver)),
		Conductor: round(total.Mul(a.Conductor)),
		Sacco:     round(total.Mul(a.Sacco)),
	}
	s.Maintenance = total.Sub(s.Owner).Sub(s.Driver).Sub(s.Conductor).Sub(s.Sacco)
	return s
}

// Notifier emits alerts. *NotificationService satisfies it.
type Notifier interface {
	EmitBatch(ctx context.Context, reqs []AlertRequest) (int, error)
}

// RevenueService computes and persists revenue splits.
type RevenueService struct {
	splitRepo  repository.RevenueSplitRepository
	tripRepo   repository.TripRepository
	notifier   Notifier
	allocation Allocation
	log        logrus.FieldLogger
}

// NewRevenueService creates a RevenueService using DefaultAllocation.
func NewRevenueService(
	splitRepo repository.RevenueSplitRepository,
	tripRepo repository.TripRepository,
	notifier Notifier,
	log logrus.FieldLogger,
) (*RevenueService, error) {
	return NewRevenueServiceWithAllocation(splitRepo, tripRepo, notifier, DefaultAllocation, log)
}

// NewRevenueServiceWithAllocation creates a RevenueService with a custom
// allocation. It fails if the allocation does not sum to one.
func NewRevenueServiceWithAllocation(
	splitRepo repository.RevenueSplitRepository,
	tripRepo repository.TripRepository,
	notifier Notifier,
	allocation Allocation,
	log logrus.FieldLogger,
) (*RevenueService, error) {
	if err := allocation.Validate(); err != nil {
		return nil, err
	}

	return &RevenueService{
		splitRepo:  splitRepo,
		tripRepo:   tripRepo,
		notifier:   notifier,
		allocation: allocation,
		log:        log,
	}, nil
}

// Compute divides total with the service's allocation.
func (s *RevenueService) Compute(total decimal.Decimal) Shares {
	return s.allocation.Split(total)
}

// CreateSplit computes and stores the split of a trip. It joins the caller's
// unit of work when ctx carries one. A trip gets at most one split.
func (s *RevenueService) CreateSplit(ctx context.Context, tripID string) (*domain.RevenueSplit, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if _, err := s.splitRepo.GetByTripID(ctx, tripID); err == nil {
		return nil, ErrSplitExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	shares := s.Compute(trip.TotalAmount)
	split := &domain.RevenueSplit{
		ID:                uuid.New().String(),
		TripID:            trip.ID,
		TotalAmount:       trip.TotalAmount.Round(2),
		OwnerAmount:       shares.Owner,
		DriverAmount:      shares.Driver,
		ConductorAmount:   shares.Conductor,
		SaccoAmount:       shares.Sacco,
		MaintenanceAmount: shares.Maintenance,
		OwnerID:           trip.OwnerID,
		DriverID:          trip.DriverID,
		ConductorID:       trip.ConductorID,
	}
	split.IntegrityHash = split.Fingerprint()

	if err := s.splitRepo.Create(ctx, split); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSplitExists
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"split_id": split.ID,
		"trip_id":  trip.ID,
		"total":    split.TotalAmount.StringFixed(2),
	}).Info("revenue split created")

	return split, nil
}

// NotifyPayees sends each payee an alert with their share. Failures are
// logged and never returned.
func (s *RevenueService) NotifyPayees(ctx context.Context, split *domain.RevenueSplit) {
	if s.notifier == nil {
		return
	}

	reqs := []AlertRequest{
		{UserID: split.OwnerID, Message: splitMessage(split.OwnerAmount), Type: domain.AlertTypeRevenueSplit},
		{UserID: split.DriverID, Message: splitMessage(split.DriverAmount), Type: domain.AlertTypeRevenueSplit},
		{UserID: split.ConductorID, Message: splitMessage(split.ConductorAmount), Type: domain.AlertTypeRevenueSplit},
	}

	if _, err := s.notifier.EmitBatch(ctx, reqs); err != nil {
		s.log.WithError(err).WithField("split_id", split.ID).Warn("failed to notify payees")
	}
}

func splitMessage(amount decimal.Decimal) string {
	return "Revenue split completed: KES " + amount.StringFixed(2)
}

// ListSplits returns the splits visible to the principal, newest first.
func (s *RevenueService) ListSplits(ctx context.Context, p domain.Principal) ([]*domain.RevenueSplit, error) {
	filter, err := splitFilterFor(p)
	if err != nil {
		return nil, err
	}
	return s.splitRepo.List(ctx, filter)
}

// Summary totals the visible splits of trips that have been paid for.
func (s *RevenueService) Summary(ctx context.Context, p domain.Principal) (*domain.RevenueSummary, error) {
	filter, err := splitFilterFor(p)
	if err != nil {
		return nil, err
	}
	return s.splitRepo.Summarize(ctx, filter)
}

func splitFilterFor(p domain.Principal) (repository.SplitFilter, error) {
	var filter repository.SplitFilter
	switch p.Role {
	case domain.RoleOwner:
		filter.OwnerID = p.UserID
	case domain.RoleDriver:
		filter.DriverID = p.UserID
	case domain.RoleConductor:
		filter.ConductorID = p.UserID
	case domain.RoleSacco, domain.RoleAdmin:
	default:
		return filter, ErrForbidden
	}
	return filter, nil
}

// GetSplit returns a split if the principal may see it.
func (s *RevenueService) GetSplit(ctx context.Context, p domain.Principal, splitID string) (*domain.RevenueSplit, error) {
	split, err := s.splitRepo.GetByID(ctx, splitID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !split.VisibleTo(p) {
		return nil, ErrForbidden
	}
	return split, nil
}

// VerifySplit recomputes the integrity hash of a stored split and reports
// whether it still matches.
func (s *RevenueService) VerifySplit(ctx context.Context, p domain.Principal, splitID string) (bool, error) {
	split, err := s.GetSplit(ctx, p, splitID)
	if err != nil {
		return false, err
	}

	ok := split.Fingerprint() == split.IntegrityHash &&
		split.SharesTotal().Equal(split.TotalAmount)
	if !ok {
		s.log.WithField("split_id", split.ID).Error("revenue split failed integrity check")
	}

	return ok, nil
}
