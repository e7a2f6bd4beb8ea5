package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/gateway"
	"matatu/internal/queue"
	"matatu/internal/redis"
	"matatu/internal/repository"
)

// TripCompleter completes trips on payment. *TripService satisfies it.
type TripCompleter interface {
	MarkCompleted(ctx context.Context, tripID string) error
}

// PaymentOptions tunes payment initiation and reconciliation.
type PaymentOptions struct {
	DebounceWindow time.Duration
	MatchWindow    time.Duration
	GatewayTimeout time.Duration

	// InFlightWait bounds how long a debounced request waits for the
	// winning request to store its payment.
	InFlightWait time.Duration

	// BackgroundLimit caps callbacks reconciled off-queue at once.
	BackgroundLimit int
}

// DefaultPaymentOptions are the production settings.
var DefaultPaymentOptions = PaymentOptions{
	DebounceWindow:  5 * time.Minute,
	MatchWindow:     24 * time.Hour,
	GatewayTimeout:  30 * time.Second,
	InFlightWait:    2 * time.Second,
	BackgroundLimit: 16,
}

const inFlightPoll = 25 * time.Millisecond

// PaymentService initiates mobile-money charges for trips and reconciles
// provider callbacks against them.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	tripRepo    repository.TripRepository
	uow         repository.UnitOfWork
	locks       redis.LockStoreInterface
	gateway     gateway.ChargeGateway
	trips       TripCompleter
	notifier    Notifier
	dispatcher  queue.Dispatcher
	opts        PaymentOptions
	log         logrus.FieldLogger
	now         func() time.Time

	background chan struct{}
	wg         sync.WaitGroup
}

// NewPaymentService creates a new PaymentService. locks and notifier may be
// nil. Callbacks are reconciled inline until SetDispatcher is called.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	tripRepo repository.TripRepository,
	uow repository.UnitOfWork,
	locks redis.LockStoreInterface,
	gw gateway.ChargeGateway,
	trips TripCompleter,
	notifier Notifier,
	opts PaymentOptions,
	log logrus.FieldLogger,
) *PaymentService {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultPaymentOptions.DebounceWindow
	}
	if opts.MatchWindow <= 0 {
		opts.MatchWindow = DefaultPaymentOptions.MatchWindow
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = DefaultPaymentOptions.GatewayTimeout
	}
	if opts.InFlightWait <= 0 {
		opts.InFlightWait = DefaultPaymentOptions.InFlightWait
	}
	if opts.BackgroundLimit <= 0 {
		opts.BackgroundLimit = DefaultPaymentOptions.BackgroundLimit
	}

	return &PaymentService{
		paymentRepo: paymentRepo,
		tripRepo:    tripRepo,
		uow:         uow,
		locks:       locks,
		gateway:     gw,
		trips:       trips,
		notifier:    notifier,
		opts:        opts,
		log:         log,
		now:         time.Now,
		background:  make(chan struct{}, opts.BackgroundLimit),
	}
}

// SetDispatcher routes received callbacks through d.
func (s *PaymentService) SetDispatcher(d queue.Dispatcher) {
	s.dispatcher = d
}

// InitiateResult is returned by a successful InitiatePayment.
type InitiateResult struct {
	PaymentID string
	SessionID string
	Reference string
}

// InitiatePayment requests an STK push for a trip's total. Concurrent and
// repeated requests for the same trip and phone within the debounce window
// collapse onto the first payment and return *DuplicateRequestError.
func (s *PaymentService) InitiatePayment(ctx context.Context, p domain.Principal, tripID, rawPhone string) (*InitiateResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !trip.VisibleTo(p) {
		return nil, ErrForbidden
	}

	paid, err := s.paymentRepo.HasReceived(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrAlreadyPaid
	}

	// The provider charges whole shillings only.
	if !trip.TotalAmount.IsPositive() || !trip.TotalAmount.Equal(trip.TotalAmount.Truncate(0)) {
		return nil, ErrInvalidAmount
	}

	entry := s.log.WithFields(logrus.Fields{"trip_id": trip.ID, "phone": phone})

	lock, acquired := s.acquireLock(ctx, entry, trip.ID, phone)

	since := s.now().Add(-s.opts.DebounceWindow)
	existing, err := s.paymentRepo.FindPending(ctx, trip.ID, phone, since)
	switch {
	case err == nil:
		entry.WithField("payment_id", existing.ID).Info("duplicate payment request")
		return nil, &DuplicateRequestError{PaymentID: existing.ID}
	case !errors.Is(err, repository.ErrNotFound):
		s.releaseLock(entry, lock)
		return nil, err
	case !acquired:
		// Another request holds the lock but has not stored its payment yet.
		return nil, s.awaitInFlight(ctx, entry, trip.ID, phone, since)
	}

	payment := &domain.Payment{
		ID:          uuid.New().String(),
		TripID:      trip.ID,
		Amount:      trip.TotalAmount,
		PhoneNumber: phone,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.releaseLock(entry, lock)
		return nil, err
	}

	reference := PaymentReference(trip.ID, s.now().UnixMilli())
	entry = entry.WithFields(logrus.Fields{"payment_id": payment.ID, "reference": reference})

	gwCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	result, err := s.gateway.InitiateCharge(gwCtx, gateway.ChargeRequest{
		Phone:     InternationalPhone(phone),
		Amount:    payment.Amount,
		Reference: reference,
	})
	cancel()

	if err != nil || !result.Success {
		msg := "charge rejected"
		if err != nil {
			msg = err.Error()
		} else if result.Error != "" {
			msg = result.Error
		}

		payment.Status = domain.PaymentStatusFailed
		if uerr := s.paymentRepo.Update(context.WithoutCancel(ctx), payment); uerr != nil {
			entry.WithError(uerr).Error("failed to mark payment failed")
		}
		s.releaseLock(entry, lock)

		entry.WithField("gateway_error", msg).Warn("charge initiation failed")
		return nil, fmt.Errorf("%w: %s", ErrUpstreamFailure, msg)
	}

	payment.ProviderRef = result.ProviderRef
	if payment.ProviderRef == "" {
		payment.ProviderRef = reference
	}
	payment.SessionID = result.SessionID
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, err
	}

	entry.WithField("session_id", payment.SessionID).Info("charge initiated")

	return &InitiateResult{
		PaymentID: payment.ID,
		SessionID: payment.SessionID,
		Reference: reference,
	}, nil
}

// awaitInFlight polls for the payment of the request holding the debounce
// lock. If none appears within InFlightWait, for instance because that
// request failed before storing it, the duplicate carries no payment id.
func (s *PaymentService) awaitInFlight(ctx context.Context, entry logrus.FieldLogger, tripID, phone string, since time.Time) error {
	timeout := time.NewTimer(s.opts.InFlightWait)
	defer timeout.Stop()
	ticker := time.NewTicker(inFlightPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			entry.Warn("duplicate payment request, in-flight payment not yet stored")
			return &DuplicateRequestError{}
		case <-ticker.C:
		}

		existing, err := s.paymentRepo.FindPending(ctx, tripID, phone, since)
		if err == nil {
			entry.WithField("payment_id", existing.ID).Info("duplicate payment request")
			return &DuplicateRequestError{PaymentID: existing.ID}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
}

// acquireLock takes the debounce lock. Redis failures are logged and treated
// as acquired, leaving the database check as the only guard.
func (s *PaymentService) acquireLock(ctx context.Context, entry logrus.FieldLogger, tripID, phone string) (*redis.Lock, bool) {
	if s.locks == nil {
		return nil, true
	}

	lock, err := s.locks.AcquirePaymentLock(ctx, tripID, phone, s.opts.DebounceWindow)
	if err != nil {
		entry.WithError(err).Warn("payment lock unavailable")
		return nil, true
	}

	return lock, lock != nil
}

func (s *PaymentService) releaseLock(entry logrus.FieldLogger, lock *redis.Lock) {
	if s.locks == nil || lock == nil {
		return
	}
	if err := s.locks.Release(context.Background(), lock); err != nil {
		entry.WithError(err).Warn("failed to release payment lock")
	}
}

// clearLock lets the customer retry right away after a failed charge.
func (s *PaymentService) clearLock(ctx context.Context, entry logrus.FieldLogger, payment *domain.Payment) {
	if s.locks == nil {
		return
	}
	if err := s.locks.ClearPaymentLock(ctx, payment.TripID, payment.PhoneNumber); err != nil {
		entry.WithError(err).Warn("failed to clear payment lock")
	}
}

// HandleProviderCallback accepts a raw provider callback and hands it to
// the reconciler. It never fails; the returned id identifies the job in logs.
func (s *PaymentService) HandleProviderCallback(ctx context.Context, raw []byte) string {
	job := queue.Job{
		ID:         uuid.New().String(),
		Payload:    append([]byte(nil), raw...),
		ReceivedAt: s.now(),
	}

	entry := s.log.WithFields(logrus.Fields{"job_id": job.ID, "bytes": len(raw)})
	entry.Info("payment callback received")

	if s.dispatcher != nil {
		err := s.dispatcher.Enqueue(ctx, job)
		if err == nil {
			return job.ID
		}
		entry.WithError(err).Warn("enqueue failed, reconciling in background")
	}

	select {
	case s.background <- struct{}{}:
		s.wg.Add(1)
		go func() {
			defer func() {
				<-s.background
				s.wg.Done()
			}()
			s.reconcileDetached(entry, job)
		}()
	default:
		entry.Warn("background reconcilers busy, reconciling inline")
		s.reconcileDetached(entry, job)
	}

	return job.ID
}

func (s *PaymentService) reconcileDetached(entry logrus.FieldLogger, job queue.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.GatewayTimeout)
	defer cancel()
	if err := s.ProcessJob(ctx, job); err != nil {
		entry.WithError(err).Error("background reconciliation failed")
	}
}

// Drain waits for callbacks being reconciled off-queue.
func (s *PaymentService) Drain() {
	s.wg.Wait()
}

// ProcessJob is the queue.Handler for reconciliation jobs. Only errors
// worth retrying are returned.
func (s *PaymentService) ProcessJob(ctx context.Context, job queue.Job) error {
	outcome, err := s.Reconcile(ctx, job.Payload)
	if err != nil {
		if errors.Is(err, ErrAnomaly) {
			return nil
		}
		return err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"outcome":    outcome.Kind,
		"payment_id": outcome.PaymentID,
	}).Info("payment callback reconciled")

	return nil
}

// OutcomeKind classifies what a reconciliation did.
type OutcomeKind string

const (
	OutcomeApplied   OutcomeKind = "applied"   // pending payment moved to a terminal status
	OutcomeRecorded  OutcomeKind = "recorded"  // payload stored, status unresolved
	OutcomeDuplicate OutcomeKind = "duplicate" // terminal payment, same status
	OutcomeAnomaly   OutcomeKind = "anomaly"   // terminal payment, contradicting status
	OutcomeUnmatched OutcomeKind = "unmatched"
	OutcomeMalformed OutcomeKind = "malformed"
)

// ReconcileOutcome reports the effect of one callback.
type ReconcileOutcome struct {
	Kind      OutcomeKind
	PaymentID string
	TripID    string
	Status    domain.PaymentStatus
}

// Reconcile matches a callback to a payment and applies it under a row
// lock. The first terminal status wins; a later contradicting callback is
// logged and returned as ErrAnomaly without changing the payment.
func (s *PaymentService) Reconcile(ctx context.Context, raw []byte) (*ReconcileOutcome, error) {
	rec, ok := ExtractCallback(raw)
	if !ok {
		s.log.WithField("bytes", len(raw)).Warn("discarding malformed payment callback")
		return &ReconcileOutcome{Kind: OutcomeMalformed}, nil
	}

	status := NormalizeCallbackStatus(rec.Status)
	entry := s.log.WithFields(logrus.Fields{
		"provider_ref": rec.ProviderRef,
		"session_id":   rec.SessionID,
		"reference":    rec.Reference,
		"status":       status,
	})

	matched, err := s.matchPayment(ctx, rec)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		entry.Warn("payment callback matched no payment")
		return &ReconcileOutcome{Kind: OutcomeUnmatched}, nil
	}

	outcome := &ReconcileOutcome{PaymentID: matched.ID, TripID: matched.TripID}
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		payment, err := s.paymentRepo.GetByIDForUpdate(ctx, matched.ID)
		if err != nil {
			return err
		}
		outcome.Status = payment.Status

		if payment.Status.IsTerminal() {
			if status == payment.Status || status == domain.PaymentStatusPending {
				outcome.Kind = OutcomeDuplicate
				return nil
			}
			outcome.Kind = OutcomeAnomaly
			return fmt.Errorf("%w: payment %s is %s, callback says %s", ErrAnomaly, payment.ID, payment.Status, status)
		}

		payment.RawCallback = raw
		if payment.ProviderRef == "" {
			payment.ProviderRef = rec.ProviderRef
		}
		if payment.SessionID == "" {
			payment.SessionID = rec.SessionID
		}

		outcome.Kind = OutcomeRecorded
		if status.IsTerminal() {
			payment.Status = status
			if rec.Receipt != "" {
				payment.ReceiptCode = rec.Receipt
			}
			payment.ConfirmedAt = s.now()
			outcome.Kind = OutcomeApplied
			outcome.Status = status
		}

		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			return err
		}

		if payment.Status == domain.PaymentStatusReceived {
			return s.trips.MarkCompleted(ctx, payment.TripID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAnomaly) {
			entry.WithError(err).WithField("payment_id", matched.ID).Error("contradicting payment callback ignored")
			return outcome, err
		}
		return nil, err
	}

	if outcome.Kind == OutcomeApplied {
		switch outcome.Status {
		case domain.PaymentStatusReceived:
			s.notifyReceived(ctx, matched)
		case domain.PaymentStatusFailed:
			s.clearLock(ctx, entry, matched)
		}
	}

	return outcome, nil
}

// matchPayment finds the payment a callback refers to, trying provider
// reference, then session id, then the newest pending payment of the trip
// named in the reference. Returns nil if nothing matches.
func (s *PaymentService) matchPayment(ctx context.Context, rec *CallbackRecord) (*domain.Payment, error) {
	lookups := []func() (*domain.Payment, error){}

	if rec.ProviderRef != "" {
		lookups = append(lookups, func() (*domain.Payment, error) {
			return s.paymentRepo.GetByProviderRef(ctx, rec.ProviderRef)
		})
	}
	if rec.SessionID != "" {
		lookups = append(lookups, func() (*domain.Payment, error) {
			return s.paymentRepo.GetBySessionID(ctx, rec.SessionID)
		})
	}
	if tripID, ok := TripIDFromReference(rec.Reference); ok {
		lookups = append(lookups, func() (*domain.Payment, error) {
			return s.paymentRepo.LatestPendingForTrip(ctx, tripID, s.now().Add(-s.opts.MatchWindow))
		})
	}

	for _, lookup := range lookups {
		payment, err := lookup()
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

func (s *PaymentService) notifyReceived(ctx context.Context, payment *domain.Payment) {
	if s.notifier == nil {
		return
	}

	trip, err := s.tripRepo.GetByID(ctx, payment.TripID)
	if err != nil {
		s.log.WithError(err).WithField("trip_id", payment.TripID).Warn("failed to load trip for payment alert")
		return
	}

	msg := "Payment received: KES " + payment.Amount.StringFixed(2)
	if _, err := s.notifier.EmitBatch(ctx, []AlertRequest{
		{UserID: trip.ConductorID, Message: msg, Type: domain.AlertTypePaymentReceived},
	}); err != nil {
		s.log.WithError(err).WithField("payment_id", payment.ID).Warn("failed to emit payment alert")
	}
}

// GetPaymentStatus looks a payment up by id, then by session id, then by
// provider reference. The principal must be able to see the payment's trip.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, p domain.Principal, key string) (*domain.Payment, error) {
	payment, err := s.findPayment(ctx, key)
	if err != nil {
		return nil, err
	}

	trip, err := s.tripRepo.GetByID(ctx, payment.TripID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !trip.VisibleTo(p) {
		return nil, ErrForbidden
	}
	return payment, nil
}

func (s *PaymentService) findPayment(ctx context.Context, key string) (*domain.Payment, error) {
	lookups := []func(context.Context, string) (*domain.Payment, error){
		s.paymentRepo.GetByID,
		s.paymentRepo.GetBySessionID,
		s.paymentRepo.GetByProviderRef,
	}

	for _, lookup := range lookups {
		payment, err := lookup(ctx, key)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	return nil, ErrNotFound
}

// ListPaymentsForTrip returns a trip's payments if the principal may see the trip.
func (s *PaymentService) ListPaymentsForTrip(ctx context.Context, p domain.Principal, tripID string) ([]*domain.Payment, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !trip.VisibleTo(p) {
		return nil, ErrForbidden
	}

	return s.paymentRepo.ListByTrip(ctx, tripID)
}
