package tests

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"matatu/internal/auth"
	"matatu/internal/domain"
	"matatu/internal/logger"
	"matatu/internal/service"
)

// Seeded identities shared by the service and handler tests.
const (
	SaccoID     = "user-sacco"
	OwnerID     = "user-owner"
	DriverID    = "user-driver"
	OtherDriver = "user-driver-2"
	ConductorID = "user-conductor"
	RouteID     = "route-town-rongai"
	VehicleID   = "vehicle-kcx-123a"
	TestSecret  = "test-secret"
)

// Principals for the seeded users.
var (
	Sacco     = domain.Principal{UserID: SaccoID, Role: domain.RoleSacco}
	Owner     = domain.Principal{UserID: OwnerID, Role: domain.RoleOwner}
	Driver    = domain.Principal{UserID: DriverID, Role: domain.RoleDriver}
	Driver2   = domain.Principal{UserID: OtherDriver, Role: domain.RoleDriver}
	Conductor = domain.Principal{UserID: ConductorID, Role: domain.RoleConductor}
)

// MustDecimal parses s or panics.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Fixture is the full service graph over in-memory fakes.
type Fixture struct {
	Users    *MockUserRepository
	Routes   *MockRouteRepository
	Vehicles *MockVehicleRepository
	Trips    *MockTripRepository
	Splits   *MockRevenueSplitRepository
	Payments *MockPaymentRepository
	Withdraw *MockWithdrawalRepository
	Alerts   *MockAlertRepository
	Cache    *MockFareCache
	Locks    *MockLockStore
	Gateway  *MockGateway
	UoW      *MockUnitOfWork
	Tokens   *auth.TokenManager

	Notifications *service.NotificationService
	FareService   *service.FareService
	Revenue       *service.RevenueService
	TripService   *service.TripService
	PaymentSvc    *service.PaymentService
	UserService   *service.UserService
	VehicleSvc    *service.VehicleService
	WalletSvc     *service.WalletService
}

// NewFixture wires every service and seeds one route (normal 150, rush
// hour 200), one 14-seat vehicle and a user of each role.
func NewFixture() *Fixture {
	log := logger.Discard()

	f := &Fixture{
		Users:    NewMockUserRepository(),
		Routes:   NewMockRouteRepository(),
		Vehicles: NewMockVehicleRepository(),
		Trips:    NewMockTripRepository(),
		Splits:   NewMockRevenueSplitRepository(),
		Payments: NewMockPaymentRepository(),
		Withdraw: NewMockWithdrawalRepository(),
		Alerts:   NewMockAlertRepository(),
		Cache:    NewMockFareCache(),
		Locks:    NewMockLockStore(),
		Gateway:  NewMockGateway(),
	}
	f.UoW = NewMockUnitOfWork(f.Trips, f.Splits, f.Payments, f.Withdraw)
	f.Splits.PaidBy(f.Payments)

	tokens, err := auth.NewTokenManager(TestSecret, time.Hour)
	if err != nil {
		panic(err)
	}
	f.Tokens = tokens

	f.Notifications = service.NewNotificationService(f.Alerts, log)
	f.FareService = service.NewFareService(f.Routes, f.UoW, f.Cache, log)
	f.Revenue, err = service.NewRevenueService(f.Splits, f.Trips, f.Notifications, log)
	if err != nil {
		panic(err)
	}
	f.TripService = service.NewTripService(f.Trips, f.Vehicles, f.Users, f.FareService, f.Revenue, f.UoW, log)
	f.PaymentSvc = service.NewPaymentService(
		f.Payments, f.Trips, f.UoW, f.Locks, f.Gateway, f.TripService, f.Notifications,
		service.DefaultPaymentOptions, log,
	)
	f.UserService = service.NewUserService(f.Users, f.Tokens, log)
	f.VehicleSvc = service.NewVehicleService(f.Vehicles, f.Users, log)
	f.WalletSvc = service.NewWalletService(f.Splits, f.Withdraw, f.UoW, f.Notifications, log)

	for _, u := range []*domain.User{
		{ID: SaccoID, Name: "Sacco", PhoneNumber: "0700000001", Role: domain.RoleSacco},
		{ID: OwnerID, Name: "Owner", PhoneNumber: "0700000002", Role: domain.RoleOwner},
		{ID: DriverID, Name: "Driver", PhoneNumber: "0700000003", Role: domain.RoleDriver},
		{ID: OtherDriver, Name: "Driver Two", PhoneNumber: "0700000004", Role: domain.RoleDriver},
		{ID: ConductorID, Name: "Conductor", PhoneNumber: "0700000005", Role: domain.RoleConductor},
	} {
		f.Users.AddUser(u)
	}

	f.Routes.AddRoute(RouteID, map[domain.FareType]string{
		domain.FareTypeNormal:   "150",
		domain.FareTypeRushHour: "200",
	})
	f.Vehicles.AddVehicle(&domain.Vehicle{
		ID:          VehicleID,
		PlateNumber: "KCX 123A",
		Capacity:    domain.DefaultVehicleCapacity,
		OwnerID:     OwnerID,
	})

	return f
}

// PendingTrip seeds a pending trip with the given total for the seeded
// conductor, driver and owner.
func (f *Fixture) PendingTrip(id, total string) *domain.Trip {
	trip := &domain.Trip{
		ID:             id,
		RouteID:        RouteID,
		VehicleID:      VehicleID,
		ConductorID:    ConductorID,
		DriverID:       DriverID,
		OwnerID:        OwnerID,
		FareType:       domain.FareTypeNormal,
		PassengerCount: domain.DefaultVehicleCapacity,
		TotalAmount:    MustDecimal(total),
		Status:         domain.TripStatusPending,
		TripDate:       time.Now().Truncate(24 * time.Hour),
		CreatedAt:      time.Now(),
	}
	f.Trips.AddTrip(trip)
	return trip
}

// PaidTrip seeds a trip with a received payment and its revenue split.
func (f *Fixture) PaidTrip(id, total string) *domain.RevenueSplit {
	trip := f.PendingTrip(id, total)
	f.Payments.AddPayment(&domain.Payment{
		ID:          "pay-" + id,
		TripID:      trip.ID,
		Amount:      trip.TotalAmount,
		PhoneNumber: "0712345678",
		Status:      domain.PaymentStatusReceived,
		CreatedAt:   time.Now(),
		ConfirmedAt: time.Now(),
	})

	split, err := f.Revenue.CreateSplit(context.Background(), trip.ID)
	if err != nil {
		panic(err)
	}
	return split
}
