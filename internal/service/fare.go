package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/redis"
	"matatu/internal/repository"
)

// ErrRouteNotFound and ErrFareRuleNotFound refine ErrNotFound for fare lookups.
var (
	ErrRouteNotFound    = fmt.Errorf("route %w", ErrNotFound)
	ErrFareRuleNotFound = fmt.Errorf("fare rule %w", ErrNotFound)
)

// FareService is the fare catalog: routes and their per-fare-type prices.
type FareService struct {
	routeRepo repository.RouteRepository
	uow       repository.UnitOfWork
	cache     redis.FareCacheInterface
	log       logrus.FieldLogger
}

// NewFareService creates a new FareService. cache may be nil.
func NewFareService(
	routeRepo repository.RouteRepository,
	uow repository.UnitOfWork,
	cache redis.FareCacheInterface,
	log logrus.FieldLogger,
) *FareService {
	return &FareService{
		routeRepo: routeRepo,
		uow:       uow,
		cache:     cache,
		log:       log,
	}
}

// LookupFare returns the per-seat fare of a route for a fare type.
func (s *FareService) LookupFare(ctx context.Context, routeID string, fareType domain.FareType) (decimal.Decimal, error) {
	rules, err := s.fareRules(ctx, routeID)
	if err != nil {
		return decimal.Zero, err
	}

	for _, rule := range rules {
		if rule.FareType == fareType {
			return rule.Amount, nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: route %s has no %s fare", ErrFareRuleNotFound, routeID, fareType)
}

// fareRules reads through the cache. Cache errors are logged and the
// database is used instead.
func (s *FareService) fareRules(ctx context.Context, routeID string) ([]domain.FareRule, error) {
	if s.cache != nil {
		rules, ok, err := s.cache.GetRouteFares(ctx, routeID)
		if err != nil {
			s.log.WithError(err).WithField("route_id", routeID).Warn("fare cache read failed")
		} else if ok {
			return rules, nil
		}
	}

	rules, err := s.routeRepo.GetFareRules(ctx, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRouteFares(ctx, routeID, rules); err != nil {
			s.log.WithError(err).WithField("route_id", routeID).Warn("fare cache write failed")
		}
	}

	return rules, nil
}

// ListRoutes returns every route with its fare rules.
func (s *FareService) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	return s.routeRepo.List(ctx)
}

// GetRoute returns a route with its fare rules.
func (s *FareService) GetRoute(ctx context.Context, routeID string) (*domain.Route, error) {
	route, err := s.routeRepo.GetByID(ctx, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	return route, nil
}

// FareInput is one fare rule in a route request.
type FareInput struct {
	FareType string
	Amount   decimal.Decimal
}

// CreateRouteRequest contains the parameters for creating a route.
type CreateRouteRequest struct {
	Name        string
	Origin      string
	Destination string
	DistanceKm  *float64
	Fares       []FareInput
}

// CreateRoute creates a route and its fare rules atomically.
// Only sacco and admin principals may create routes.
func (s *FareService) CreateRoute(ctx context.Context, p domain.Principal, req CreateRouteRequest) (*domain.Route, error) {
	if !p.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	origin := strings.TrimSpace(req.Origin)
	destination := strings.TrimSpace(req.Destination)
	if name == "" || origin == "" || destination == "" {
		return nil, fmt.Errorf("%w: name, origin and destination are required", ErrValidation)
	}
	if req.DistanceKm != nil && *req.DistanceKm <= 0 {
		return nil, fmt.Errorf("%w: distance must be positive", ErrValidation)
	}

	route := &domain.Route{
		ID:          uuid.New().String(),
		Name:        name,
		Origin:      origin,
		Destination: destination,
		DistanceKm:  req.DistanceKm,
	}

	seen := make(map[domain.FareType]bool, len(req.Fares))
	for _, f := range req.Fares {
		rule, err := newFareRule(route.ID, f)
		if err != nil {
			return nil, err
		}
		if seen[rule.FareType] {
			return nil, fmt.Errorf("%w: duplicate %s fare", ErrValidation, rule.FareType)
		}
		seen[rule.FareType] = true
		route.FareRules = append(route.FareRules, rule)
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		return s.routeRepo.Create(ctx, route)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"route_id": route.ID,
		"fares":    len(route.FareRules),
	}).Info("route created")

	return route, nil
}

// SetFareRule inserts or replaces the fare for (route, fare type). Trips
// already created keep their snapshotted totals.
func (s *FareService) SetFareRule(ctx context.Context, p domain.Principal, routeID string, in FareInput) (*domain.FareRule, error) {
	if !p.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	if _, err := s.GetRoute(ctx, routeID); err != nil {
		return nil, err
	}

	rule, err := newFareRule(routeID, in)
	if err != nil {
		return nil, err
	}

	if err := s.routeRepo.UpsertFareRule(ctx, &rule); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateRouteFares(ctx, routeID); err != nil {
			s.log.WithError(err).WithField("route_id", routeID).Warn("fare cache invalidation failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"route_id":  routeID,
		"fare_type": rule.FareType,
		"amount":    rule.Amount.StringFixed(2),
	}).Info("fare rule set")

	return &rule, nil
}

func newFareRule(routeID string, in FareInput) (domain.FareRule, error) {
	fareType, ok := domain.ParseFareType(in.FareType)
	if !ok {
		return domain.FareRule{}, fmt.Errorf("%w: %q", ErrInvalidFareType, in.FareType)
	}
	if !in.Amount.IsPositive() {
		return domain.FareRule{}, fmt.Errorf("%w: fare must be positive", ErrInvalidAmount)
	}

	return domain.FareRule{
		ID:       uuid.New().String(),
		RouteID:  routeID,
		FareType: fareType,
		Amount:   in.Amount.Round(2),
	}, nil
}
