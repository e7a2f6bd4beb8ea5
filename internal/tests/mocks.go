package tests

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"matatu/internal/domain"
	"matatu/internal/gateway"
	"matatu/internal/redis"
	"matatu/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK UNIT OF WORK
// ──────────────────────────────────────────────

// txParticipant is a repository whose state a MockUnitOfWork can roll back.
type txParticipant interface {
	snapshot() (restore func())
}

type mockTxKey struct{}

// MockUnitOfWork serializes transactions behind one mutex and restores the
// tracked repositories when fn fails. A nested WithinTx joins the outer
// one, like the postgres implementation.
type MockUnitOfWork struct {
	mu           sync.Mutex
	participants []txParticipant

	// Counters for verification
	TxCount       int32
	RollbackCount int32
}

// NewMockUnitOfWork creates a unit of work over the given repositories.
func NewMockUnitOfWork(participants ...txParticipant) *MockUnitOfWork {
	return &MockUnitOfWork{participants: participants}
}

func (m *MockUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(mockTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddInt32(&m.TxCount, 1)

	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.snapshot())
	}

	if err := fn(context.WithValue(ctx, mockTxKey{}, true)); err != nil {
		atomic.AddInt32(&m.RollbackCount, 1)
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is an in-memory UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// AddUser seeds a user.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[u.ID] = &u
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneNumber == user.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// ──────────────────────────────────────────────
// MOCK ROUTE REPOSITORY
// ──────────────────────────────────────────────

// MockRouteRepository is an in-memory RouteRepository.
type MockRouteRepository struct {
	mu     sync.RWMutex
	routes map[string]*domain.Route

	// Counters for verification
	GetFareRulesCallCount int32
}

// NewMockRouteRepository creates a new mock route repository.
func NewMockRouteRepository() *MockRouteRepository {
	return &MockRouteRepository{routes: make(map[string]*domain.Route)}
}

// AddRoute seeds a route with fares keyed by fare type.
func (m *MockRouteRepository) AddRoute(id string, fares map[domain.FareType]string) {
	route := &domain.Route{ID: id, Name: id, Origin: "Town", Destination: "Rongai"}
	for ft, amount := range fares {
		route.FareRules = append(route.FareRules, domain.FareRule{
			ID:       uuid.New().String(),
			RouteID:  id,
			FareType: ft,
			Amount:   MustDecimal(amount),
		})
	}
	_ = m.Create(context.Background(), route)
}

func cloneRoute(r *domain.Route) *domain.Route {
	c := *r
	c.FareRules = append([]domain.FareRule(nil), r.FareRules...)
	return &c
}

func (m *MockRouteRepository) Create(ctx context.Context, route *domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.routes[route.ID]; exists {
		return repository.ErrDuplicate
	}
	m.routes[route.ID] = cloneRoute(route)
	return nil
}

func (m *MockRouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRoute(r), nil
}

func (m *MockRouteRepository) List(ctx context.Context) ([]*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Route, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, cloneRoute(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockRouteRepository) GetFareRules(ctx context.Context, routeID string) ([]domain.FareRule, error) {
	atomic.AddInt32(&m.GetFareRulesCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[routeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]domain.FareRule(nil), r.FareRules...), nil
}

func (m *MockRouteRepository) UpsertFareRule(ctx context.Context, rule *domain.FareRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[rule.RouteID]
	if !ok {
		return repository.ErrNotFound
	}
	for i, existing := range r.FareRules {
		if existing.FareType == rule.FareType {
			rule.ID = existing.ID
			r.FareRules[i] = *rule
			return nil
		}
	}
	r.FareRules = append(r.FareRules, *rule)
	return nil
}

// ──────────────────────────────────────────────
// MOCK VEHICLE REPOSITORY
// ──────────────────────────────────────────────

// MockVehicleRepository is an in-memory VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{vehicles: make(map[string]*domain.Vehicle)}
}

// AddVehicle seeds a vehicle.
func (m *MockVehicleRepository) AddVehicle(vehicle *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *vehicle
	m.vehicles[v.ID] = &v
}

// SetCapacity changes a stored vehicle's capacity.
func (m *MockVehicleRepository) SetCapacity(id string, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vehicles[id]; ok {
		v.Capacity = capacity
	}
}

func (m *MockVehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.PlateNumber == vehicle.PlateNumber {
			return repository.ErrDuplicate
		}
	}
	v := *vehicle
	m.vehicles[v.ID] = &v
	return nil
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (m *MockVehicleRepository) List(ctx context.Context, ownerID string) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Vehicle
	for _, v := range m.vehicles {
		if ownerID == "" || v.OwnerID == ownerID {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlateNumber < out[j].PlateNumber })
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is an in-memory TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	UpdateCallCount int32

	// Error injection
	UpdateError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{trips: make(map[string]*domain.Trip)}
}

// AddTrip seeds a trip.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *trip
	m.trips[t.ID] = &t
}

// CountTrips returns the number of stored trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

// GetTrip returns a stored trip for assertions, or nil.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (m *MockTripRepository) snapshot() func() {
	m.mu.RLock()
	saved := make(map[string]*domain.Trip, len(m.trips))
	for id, t := range m.trips {
		c := *t
		saved[id] = &c
	}
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		m.trips = saved
		m.mu.Unlock()
	}
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.trips[trip.ID]; exists {
		return repository.ErrDuplicate
	}
	t := *trip
	m.trips[t.ID] = &t
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if t := m.GetTrip(id); t != nil {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockTripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTripRepository) List(ctx context.Context, filter repository.TripFilter) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Trip
	for _, t := range m.trips {
		if filter.ConductorID != "" && t.ConductorID != filter.ConductorID {
			continue
		}
		if filter.DriverID != "" && t.DriverID != filter.DriverID {
			continue
		}
		if filter.OwnerID != "" && t.OwnerID != filter.OwnerID {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[trip.ID]; !ok {
		return repository.ErrNotFound
	}
	t := *trip
	m.trips[t.ID] = &t
	return nil
}

// ──────────────────────────────────────────────
// MOCK REVENUE SPLIT REPOSITORY
// ──────────────────────────────────────────────

// MockRevenueSplitRepository is an in-memory RevenueSplitRepository with a
// unique trip id, like the revenue_splits table.
type MockRevenueSplitRepository struct {
	mu     sync.RWMutex
	splits map[string]*domain.RevenueSplit
	paid   PaidLookup

	// Error injection
	CreateError error
}

// PaidLookup reports whether a trip has a received payment.
// *MockPaymentRepository satisfies it.
type PaidLookup interface {
	HasReceived(ctx context.Context, tripID string) (bool, error)
}

// NewMockRevenueSplitRepository creates a new mock split repository.
func NewMockRevenueSplitRepository() *MockRevenueSplitRepository {
	return &MockRevenueSplitRepository{splits: make(map[string]*domain.RevenueSplit)}
}

// CountSplits returns the number of stored splits.
func (m *MockRevenueSplitRepository) CountSplits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.splits)
}

// PaidBy makes the paid-trip aggregates consult payments.
func (m *MockRevenueSplitRepository) PaidBy(payments PaidLookup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid = payments
}

// Tamper overwrites a stored split's owner amount.
func (m *MockRevenueSplitRepository) Tamper(id string, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.splits[id]; ok {
		s.OwnerAmount = MustDecimal(owner)
	}
}

func (m *MockRevenueSplitRepository) snapshot() func() {
	m.mu.RLock()
	saved := make(map[string]*domain.RevenueSplit, len(m.splits))
	for id, sp := range m.splits {
		c := *sp
		saved[id] = &c
	}
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		m.splits = saved
		m.mu.Unlock()
	}
}

func (m *MockRevenueSplitRepository) Create(ctx context.Context, split *domain.RevenueSplit) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.splits {
		if s.TripID == split.TripID {
			return repository.ErrDuplicate
		}
	}
	s := *split
	s.CreatedAt = time.Now()
	m.splits[s.ID] = &s
	split.CreatedAt = s.CreatedAt
	return nil
}

func (m *MockRevenueSplitRepository) GetByID(ctx context.Context, id string) (*domain.RevenueSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.splits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *MockRevenueSplitRepository) GetByTripID(ctx context.Context, tripID string) (*domain.RevenueSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.splits {
		if s.TripID == tripID {
			c := *s
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRevenueSplitRepository) List(ctx context.Context, filter repository.SplitFilter) ([]*domain.RevenueSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.RevenueSplit
	for _, s := range m.splits {
		if filter.OwnerID != "" && s.OwnerID != filter.OwnerID {
			continue
		}
		if filter.DriverID != "" && s.DriverID != filter.DriverID {
			continue
		}
		if filter.ConductorID != "" && s.ConductorID != filter.ConductorID {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

// paidSplits returns the stored splits matching the filter whose trip has
// a received payment.
func (m *MockRevenueSplitRepository) paidSplits(ctx context.Context, filter repository.SplitFilter) ([]*domain.RevenueSplit, error) {
	splits, _ := m.List(ctx, filter)

	m.mu.RLock()
	paid := m.paid
	m.mu.RUnlock()
	if paid == nil {
		return nil, nil
	}

	var out []*domain.RevenueSplit
	for _, s := range splits {
		ok, err := paid.HasReceived(ctx, s.TripID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockRevenueSplitRepository) Summarize(ctx context.Context, filter repository.SplitFilter) (*domain.RevenueSummary, error) {
	splits, err := m.paidSplits(ctx, filter)
	if err != nil {
		return nil, err
	}
	var sum domain.RevenueSummary
	for _, s := range splits {
		sum.Add(s)
	}
	return &sum, nil
}

func (m *MockRevenueSplitRepository) EarnedBy(ctx context.Context, userID string) (decimal.Decimal, error) {
	splits, err := m.paidSplits(ctx, repository.SplitFilter{})
	if err != nil {
		return decimal.Zero, err
	}
	earned := decimal.Zero
	for _, s := range splits {
		earned = earned.Add(s.ShareOf(userID))
	}
	return earned, nil
}

// ──────────────────────────────────────────────
// MOCK WITHDRAWAL REPOSITORY
// ──────────────────────────────────────────────

// MockWithdrawalRepository is an in-memory WithdrawalRepository. Wallet
// locks are left to MockUnitOfWork, which already serializes transactions.
type MockWithdrawalRepository struct {
	mu          sync.RWMutex
	withdrawals map[string]*domain.Withdrawal

	// Counters for verification
	LockCallCount int32
}

// NewMockWithdrawalRepository creates a new mock withdrawal repository.
func NewMockWithdrawalRepository() *MockWithdrawalRepository {
	return &MockWithdrawalRepository{withdrawals: make(map[string]*domain.Withdrawal)}
}

// GetWithdrawal returns a stored withdrawal for assertions, or nil.
func (m *MockWithdrawalRepository) GetWithdrawal(id string) *domain.Withdrawal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil
	}
	c := *w
	return &c
}

// CountWithdrawals returns the number of stored withdrawals.
func (m *MockWithdrawalRepository) CountWithdrawals() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.withdrawals)
}

func (m *MockWithdrawalRepository) snapshot() func() {
	m.mu.RLock()
	saved := make(map[string]*domain.Withdrawal, len(m.withdrawals))
	for id, w := range m.withdrawals {
		c := *w
		saved[id] = &c
	}
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		m.withdrawals = saved
		m.mu.Unlock()
	}
}

func (m *MockWithdrawalRepository) LockWallet(ctx context.Context, userID string) error {
	atomic.AddInt32(&m.LockCallCount, 1)
	return nil
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.withdrawals[w.ID]; exists {
		return repository.ErrDuplicate
	}
	w.RequestedAt = time.Now()
	c := *w
	m.withdrawals[c.ID] = &c
	return nil
}

func (m *MockWithdrawalRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Withdrawal, error) {
	if w := m.GetWithdrawal(id); w != nil {
		return w, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockWithdrawalRepository) Update(ctx context.Context, w *domain.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.withdrawals[w.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *w
	m.withdrawals[c.ID] = &c
	return nil
}

func (m *MockWithdrawalRepository) List(ctx context.Context, userID string) ([]*domain.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Withdrawal
	for _, w := range m.withdrawals {
		if userID == "" || w.UserID == userID {
			c := *w
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *MockWithdrawalRepository) Reserved(ctx context.Context, userID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reserved := decimal.Zero
	for _, w := range m.withdrawals {
		if w.UserID == userID && w.Status.Reserves() {
			reserved = reserved.Add(w.Amount)
		}
	}
	return reserved, nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is an in-memory PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.Payment)}
}

// AddPayment seeds a payment.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *payment
	m.payments[p.ID] = &p
}

// CountPayments returns the number of stored payments.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

// GetPayment returns a stored payment for assertions, or nil.
func (m *MockPaymentRepository) GetPayment(id string) *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

func (m *MockPaymentRepository) find(match func(*domain.Payment) bool) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *domain.Payment
	for _, p := range m.payments {
		if match(p) && (best == nil || p.CreatedAt.After(best.CreatedAt)) {
			best = p
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	c := *best
	return &c, nil
}

func (m *MockPaymentRepository) snapshot() func() {
	m.mu.RLock()
	saved := make(map[string]*domain.Payment, len(m.payments))
	for id, p := range m.payments {
		c := *p
		saved[id] = &c
	}
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		m.payments = saved
		m.mu.Unlock()
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.payments[payment.ID]; exists {
		return repository.ErrDuplicate
	}
	p := *payment
	m.payments[p.ID] = &p
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if p := m.GetPayment(id); p != nil {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *MockPaymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.SessionID == sessionID })
}

func (m *MockPaymentRepository) GetByProviderRef(ctx context.Context, ref string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.ProviderRef == ref })
}

func (m *MockPaymentRepository) LatestPendingForTrip(ctx context.Context, tripID string, since time.Time) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool {
		return p.TripID == tripID && p.Status == domain.PaymentStatusPending && !p.CreatedAt.Before(since)
	})
}

func (m *MockPaymentRepository) FindPending(ctx context.Context, tripID, phone string, since time.Time) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool {
		return p.TripID == tripID && p.PhoneNumber == phone &&
			p.Status == domain.PaymentStatusPending && !p.CreatedAt.Before(since)
	})
}

func (m *MockPaymentRepository) HasReceived(ctx context.Context, tripID string) (bool, error) {
	_, err := m.find(func(p *domain.Payment) bool {
		return p.TripID == tripID && p.Status == domain.PaymentStatusReceived
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MockPaymentRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.TripID == tripID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return repository.ErrNotFound
	}
	p := *payment
	m.payments[p.ID] = &p
	return nil
}

// ──────────────────────────────────────────────
// MOCK ALERT REPOSITORY
// ──────────────────────────────────────────────

// MockAlertRepository is an in-memory AlertRepository.
type MockAlertRepository struct {
	mu     sync.RWMutex
	alerts []*domain.Alert

	// Error injection
	CreateError error
}

// NewMockAlertRepository creates a new mock alert repository.
func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{}
}

// ForUser returns the alerts stored for a user.
func (m *MockAlertRepository) ForUser(userID string) []*domain.Alert {
	alerts, _ := m.ListByUser(context.Background(), userID)
	return alerts
}

// CountAlerts returns the number of stored alerts.
func (m *MockAlertRepository) CountAlerts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *alert
	m.alerts = append(m.alerts, &a)
	return nil
}

func (m *MockAlertRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Alert
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].UserID == userID {
			c := *m.alerts[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockAlertRepository) MarkRead(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id && a.UserID == userID {
			a.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK FARE CACHE
// ──────────────────────────────────────────────

// MockFareCache is an in-memory fare cache.
type MockFareCache struct {
	mu    sync.Mutex
	fares map[string][]domain.FareRule

	// Error injection
	GetError error
}

// NewMockFareCache creates a new mock fare cache.
func NewMockFareCache() *MockFareCache {
	return &MockFareCache{fares: make(map[string][]domain.FareRule)}
}

// Cached reports whether a route's fares are cached.
func (m *MockFareCache) Cached(routeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fares[routeID]
	return ok
}

func (m *MockFareCache) GetRouteFares(ctx context.Context, routeID string) ([]domain.FareRule, bool, error) {
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rules, ok := m.fares[routeID]
	return append([]domain.FareRule(nil), rules...), ok, nil
}

func (m *MockFareCache) SetRouteFares(ctx context.Context, routeID string, rules []domain.FareRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fares[routeID] = append([]domain.FareRule(nil), rules...)
	return nil
}

func (m *MockFareCache) InvalidateRouteFares(ctx context.Context, routeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fares, routeID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory payment debounce lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]mockLock

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32
	ClearCallCount   int32

	// Error injection
	AcquireError error
}

type mockLock struct {
	token  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]mockLock)}
}

func (m *MockLockStore) AcquirePaymentLock(ctx context.Context, tripID, phone string, ttl time.Duration) (*redis.Lock, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return nil, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := redis.PaymentLockKey(tripID, phone)
	if l, exists := m.locks[key]; exists && time.Now().Before(l.expiry) {
		return nil, nil
	}

	lock := &redis.Lock{Key: key, Token: uuid.NewString()}
	m.locks[key] = mockLock{token: lock.Token, expiry: time.Now().Add(ttl)}
	return lock, nil
}

func (m *MockLockStore) Release(ctx context.Context, lock *redis.Lock) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[lock.Key]; ok && l.token == lock.Token {
		delete(m.locks, lock.Key)
	}
	return nil
}

func (m *MockLockStore) ClearPaymentLock(ctx context.Context, tripID, phone string) error {
	atomic.AddInt32(&m.ClearCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, redis.PaymentLockKey(tripID, phone))
	return nil
}

// IsLocked reports whether the debounce lock for a trip and phone is held.
func (m *MockLockStore) IsLocked(tripID, phone string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, exists := m.locks[redis.PaymentLockKey(tripID, phone)]
	return exists && time.Now().Before(l.expiry)
}

// ──────────────────────────────────────────────
// MOCK CHARGE GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a scriptable charge gateway.
type MockGateway struct {
	mu       sync.Mutex
	requests []gateway.ChargeRequest
	seq      int

	// Control behavior
	Reject    string
	FailError error
	Delay     time.Duration

	// Counters
	ChargeCallCount int32
}

// NewMockGateway creates a new mock gateway that accepts every charge.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) InitiateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	atomic.AddInt32(&m.ChargeCallCount, 1)
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if m.FailError != nil {
		return nil, m.FailError
	}
	if m.Reject != "" {
		return &gateway.ChargeResult{Success: false, Status: "Failed", Error: m.Reject}, nil
	}

	m.seq++
	return &gateway.ChargeResult{
		Success:     true,
		ProviderRef: "ATPid_" + strconv.Itoa(m.seq),
		SessionID:   "ws_CO_" + strconv.Itoa(m.seq),
		Status:      "PendingConfirmation",
	}, nil
}

// Requests returns the charges sent so far.
func (m *MockGateway) Requests() []gateway.ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.ChargeRequest(nil), m.requests...)
}

// Calls returns how many charges were attempted.
func (m *MockGateway) Calls() int {
	return int(atomic.LoadInt32(&m.ChargeCallCount))
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

var (
	_ repository.UnitOfWork             = (*MockUnitOfWork)(nil)
	_ repository.UserRepository         = (*MockUserRepository)(nil)
	_ repository.RouteRepository        = (*MockRouteRepository)(nil)
	_ repository.VehicleRepository      = (*MockVehicleRepository)(nil)
	_ repository.TripRepository         = (*MockTripRepository)(nil)
	_ repository.RevenueSplitRepository = (*MockRevenueSplitRepository)(nil)
	_ repository.PaymentRepository      = (*MockPaymentRepository)(nil)
	_ repository.WithdrawalRepository   = (*MockWithdrawalRepository)(nil)
	_ repository.AlertRepository        = (*MockAlertRepository)(nil)
	_ redis.FareCacheInterface          = (*MockFareCache)(nil)
	_ redis.LockStoreInterface          = (*MockLockStore)(nil)
	_ gateway.ChargeGateway             = (*MockGateway)(nil)
)
