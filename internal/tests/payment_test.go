package tests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/domain"
	"matatu/internal/logger"
	"matatu/internal/queue"
	"matatu/internal/service"
)

func callback(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func initiate(t *testing.T, f *Fixture, tripID string) *service.InitiateResult {
	t.Helper()
	result, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, tripID, "0712345678")
	require.NoError(t, err)
	return result
}

// ──────────────────────────────────────────────
// PAYMENT INITIATION
// ──────────────────────────────────────────────

func TestInitiatePayment_ChargesTripTotal(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")

	result, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "+254 712-345-678")
	require.NoError(t, err)

	assert.NotEmpty(t, result.PaymentID)
	assert.Equal(t, "ws_CO_1", result.SessionID)

	requests := f.Gateway.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "254712345678", requests[0].Phone)
	assert.True(t, MustDecimal("2100").Equal(requests[0].Amount))
	assert.Equal(t, result.Reference, requests[0].Reference)

	tripID, ok := service.TripIDFromReference(result.Reference)
	require.True(t, ok)
	assert.Equal(t, trip.ID, tripID)

	payment := f.Payments.GetPayment(result.PaymentID)
	require.NotNil(t, payment)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, "0712345678", payment.PhoneNumber)
	assert.Equal(t, "ATPid_1", payment.ProviderRef)
	assert.Equal(t, "ws_CO_1", payment.SessionID)
}

func TestInitiatePayment_SecondRequestIsDebounced(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")

	first := initiate(t, f, trip.ID)

	_, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "254712345678")
	require.ErrorIs(t, err, service.ErrDuplicateRequest)

	var dup *service.DuplicateRequestError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.PaymentID, dup.PaymentID)

	assert.Equal(t, 1, f.Gateway.Calls())
	assert.Equal(t, 1, f.Payments.CountPayments())
}

func TestInitiatePayment_ConcurrentRequestsChargeOnce(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	f.Gateway.Delay = 20 * time.Millisecond
	trip := f.PendingTrip("trip-1", "2100")

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dups      int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "0712345678")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, service.ErrDuplicateRequest):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, dups)
	assert.Equal(t, 1, f.Gateway.Calls())
	assert.Equal(t, 1, f.Payments.CountPayments())
}

func TestInitiatePayment_DifferentPhonesAreIndependent(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")

	initiate(t, f, trip.ID)
	_, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "0798765432")
	require.NoError(t, err)

	assert.Equal(t, 2, f.Gateway.Calls())
}

func TestInitiatePayment_GatewayRejectionAllowsRetry(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	ctx := context.Background()

	f.Gateway.Reject = "Insufficient balance"
	_, err := f.PaymentSvc.InitiatePayment(ctx, Conductor, trip.ID, "0712345678")
	require.ErrorIs(t, err, service.ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "Insufficient balance")
	assert.False(t, f.Locks.IsLocked(trip.ID, "0712345678"))

	payments, err := f.PaymentSvc.ListPaymentsForTrip(ctx, Conductor, trip.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)

	f.Gateway.Reject = ""
	result := initiate(t, f, trip.ID)
	assert.NotEqual(t, payments[0].ID, result.PaymentID)
	assert.Equal(t, 2, f.Payments.CountPayments())
}

func TestInitiatePayment_GatewayError(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	f.Gateway.FailError = ErrMockTimeout
	trip := f.PendingTrip("trip-1", "2100")

	_, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "0712345678")
	assert.ErrorIs(t, err, service.ErrUpstreamFailure)
}

func TestInitiatePayment_Validation(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	zero := f.PendingTrip("trip-zero", "0")
	cents := f.PendingTrip("trip-cents", "143.50")
	ctx := context.Background()

	tests := []struct {
		name    string
		p       domain.Principal
		tripID  string
		phone   string
		wantErr error
	}{
		{"bad phone", Conductor, trip.ID, "12345", service.ErrInvalidPhoneNumber},
		{"landline prefix", Conductor, trip.ID, "0201234567", service.ErrInvalidPhoneNumber},
		{"unknown trip", Conductor, "trip-missing", "0712345678", service.ErrNotFound},
		{"stranger", Driver2, trip.ID, "0712345678", service.ErrForbidden},
		{"zero total", Conductor, zero.ID, "0712345678", service.ErrInvalidAmount},
		{"fractional shillings", Conductor, cents.ID, "0712345678", service.ErrInvalidAmount},
	}

	for _, tt := range tests {
		_, err := f.PaymentSvc.InitiatePayment(ctx, tt.p, tt.tripID, tt.phone)
		assert.ErrorIs(t, err, tt.wantErr, tt.name)
	}
	assert.Equal(t, 0, f.Gateway.Calls())
	assert.Equal(t, 0, f.Payments.CountPayments())
}

func TestInitiatePayment_WaitsForInFlightPayment(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	ctx := context.Background()

	// Another request holds the lock and stores its payment shortly after.
	_, err := f.Locks.AcquirePaymentLock(ctx, trip.ID, "0712345678", time.Minute)
	require.NoError(t, err)
	go func() {
		time.Sleep(60 * time.Millisecond)
		f.Payments.AddPayment(&domain.Payment{
			ID:          "pay-in-flight",
			TripID:      trip.ID,
			Amount:      trip.TotalAmount,
			PhoneNumber: "0712345678",
			Status:      domain.PaymentStatusPending,
			CreatedAt:   time.Now(),
		})
	}()

	_, err = f.PaymentSvc.InitiatePayment(ctx, Conductor, trip.ID, "0712345678")
	var dup *service.DuplicateRequestError
	require.True(t, errors.As(err, &dup), "error %v", err)
	assert.Equal(t, "pay-in-flight", dup.PaymentID)
	assert.Equal(t, 0, f.Gateway.Calls())
}

func TestInitiatePayment_InFlightPaymentNeverStored(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	ctx := context.Background()

	opts := service.DefaultPaymentOptions
	opts.InFlightWait = 80 * time.Millisecond
	svc := service.NewPaymentService(f.Payments, f.Trips, f.UoW, f.Locks, f.Gateway, f.TripService, f.Notifications, opts, logger.Discard())

	_, err := f.Locks.AcquirePaymentLock(ctx, trip.ID, "0712345678", time.Minute)
	require.NoError(t, err)

	_, err = svc.InitiatePayment(ctx, Conductor, trip.ID, "0712345678")
	var dup *service.DuplicateRequestError
	require.True(t, errors.As(err, &dup), "error %v", err)
	assert.Empty(t, dup.PaymentID)
	assert.Equal(t, 0, f.Gateway.Calls())
	assert.Equal(t, 0, f.Payments.CountPayments())
}

func TestInitiatePayment_LockStoreDownFallsBackToDatabase(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	f.Locks.AcquireError = ErrMockTimeout
	trip := f.PendingTrip("trip-1", "2100")

	first := initiate(t, f, trip.ID)

	_, err := f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "0712345678")
	var dup *service.DuplicateRequestError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.PaymentID, dup.PaymentID)
	assert.Equal(t, 1, f.Gateway.Calls())
}

// ──────────────────────────────────────────────
// CALLBACK RECONCILIATION
// ──────────────────────────────────────────────

func TestReconcile_SuccessCompletesTrip(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)

	raw := callback(t, map[string]any{
		"transactionId": "ATPid_1",
		"status":        "Success",
		"receiptNumber": "QKT4ABC123",
	})
	outcome, err := f.PaymentSvc.Reconcile(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, service.OutcomeApplied, outcome.Kind)
	assert.Equal(t, result.PaymentID, outcome.PaymentID)
	assert.Equal(t, domain.PaymentStatusReceived, outcome.Status)

	payment := f.Payments.GetPayment(result.PaymentID)
	assert.Equal(t, domain.PaymentStatusReceived, payment.Status)
	assert.Equal(t, "QKT4ABC123", payment.ReceiptCode)
	assert.False(t, payment.ConfirmedAt.IsZero())
	assert.JSONEq(t, string(raw), string(payment.RawCallback))

	assert.Equal(t, domain.TripStatusCompleted, f.Trips.GetTrip(trip.ID).Status)

	alerts := f.Alerts.ForUser(ConductorID)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertTypePaymentReceived, alerts[0].Type)
	assert.Equal(t, "Payment received: KES 2100.00", alerts[0].Message)

	_, err = f.PaymentSvc.InitiatePayment(context.Background(), Conductor, trip.ID, "0712345678")
	assert.ErrorIs(t, err, service.ErrAlreadyPaid)
}

func TestReconcile_UnknownReference(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	initiate(t, f, trip.ID)
	updates := f.Payments.UpdateCallCount

	outcome, err := f.PaymentSvc.Reconcile(context.Background(), callback(t, map[string]any{
		"transactionId":     "ATPid_999",
		"checkoutRequestId": "ws_CO_999",
		"status":            "Success",
		"metadata":          map[string]any{"reference": "trip-unknown-1700000000000"},
	}))
	require.NoError(t, err)

	assert.Equal(t, service.OutcomeUnmatched, outcome.Kind)
	assert.Equal(t, updates, f.Payments.UpdateCallCount)
	assert.Equal(t, domain.TripStatusPending, f.Trips.GetTrip(trip.ID).Status)
}

func TestReconcile_DuplicateCallbacksAreIdempotent(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)
	ctx := context.Background()

	raw := callback(t, map[string]any{"transactionId": "ATPid_1", "status": "Success", "receiptNumber": "QKT4"})

	first, err := f.PaymentSvc.Reconcile(ctx, raw)
	require.NoError(t, err)
	before := f.Payments.GetPayment(result.PaymentID)

	second, err := f.PaymentSvc.Reconcile(ctx, raw)
	require.NoError(t, err)
	after := f.Payments.GetPayment(result.PaymentID)

	assert.Equal(t, service.OutcomeApplied, first.Kind)
	assert.Equal(t, service.OutcomeDuplicate, second.Kind)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.ReceiptCode, after.ReceiptCode)
	assert.Equal(t, before.ConfirmedAt, after.ConfirmedAt)
	assert.Len(t, f.Alerts.ForUser(ConductorID), 1)
}

func TestReconcile_ContradictingCallbackIsAnomaly(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)
	ctx := context.Background()

	_, err := f.PaymentSvc.Reconcile(ctx, callback(t, map[string]any{"transactionId": "ATPid_1", "status": "Success"}))
	require.NoError(t, err)

	failed := callback(t, map[string]any{"transactionId": "ATPid_1", "status": "Failed"})
	outcome, err := f.PaymentSvc.Reconcile(ctx, failed)
	assert.ErrorIs(t, err, service.ErrAnomaly)
	assert.Equal(t, service.OutcomeAnomaly, outcome.Kind)
	assert.Equal(t, domain.PaymentStatusReceived, f.Payments.GetPayment(result.PaymentID).Status)

	// The queue handler never retries an anomaly.
	assert.NoError(t, f.PaymentSvc.ProcessJob(ctx, queue.Job{ID: "job-1", Payload: failed}))
}

func TestReconcile_FailureClearsDebounce(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)
	ctx := context.Background()
	require.True(t, f.Locks.IsLocked(trip.ID, "0712345678"))

	outcome, err := f.PaymentSvc.Reconcile(ctx, callback(t, map[string]any{
		"checkoutRequestId": "ws_CO_1",
		"status":            "Unsuccessful",
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, outcome.Status)
	assert.Equal(t, domain.PaymentStatusFailed, f.Payments.GetPayment(result.PaymentID).Status)
	assert.Equal(t, domain.TripStatusPending, f.Trips.GetTrip(trip.ID).Status)
	assert.False(t, f.Locks.IsLocked(trip.ID, "0712345678"))

	retry := initiate(t, f, trip.ID)
	assert.NotEqual(t, result.PaymentID, retry.PaymentID)
}

func TestReconcile_MatchesByReference(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)

	meta, err := json.Marshal(map[string]string{"reference": result.Reference})
	require.NoError(t, err)

	outcome, err := f.PaymentSvc.Reconcile(context.Background(), callback(t, map[string]any{
		"status":   "Success",
		"metadata": string(meta),
	}))
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeApplied, outcome.Kind)
	assert.Equal(t, result.PaymentID, outcome.PaymentID)
}

func TestReconcile_UnresolvedStatusIsRecorded(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)

	raw := callback(t, map[string]any{"transactionId": "ATPid_1", "status": "PendingConfirmation"})
	outcome, err := f.PaymentSvc.Reconcile(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, service.OutcomeRecorded, outcome.Kind)
	payment := f.Payments.GetPayment(result.PaymentID)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.JSONEq(t, string(raw), string(payment.RawCallback))
}

func TestReconcile_Malformed(t *testing.T) {
	t.Parallel()
	f := NewFixture()

	for _, raw := range []string{"", "not json", "[1,2]", "null"} {
		outcome, err := f.PaymentSvc.Reconcile(context.Background(), []byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, service.OutcomeMalformed, outcome.Kind, raw)
	}
}

// ──────────────────────────────────────────────
// CALLBACK HANDOFF
// ──────────────────────────────────────────────

func TestHandleProviderCallback_ThroughLocalQueue(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)

	dispatcher := queue.NewLocalDispatcher(queue.LocalOptions{Workers: 2}, f.PaymentSvc.ProcessJob, logger.Discard())
	defer dispatcher.Close()
	f.PaymentSvc.SetDispatcher(dispatcher)

	jobID := f.PaymentSvc.HandleProviderCallback(context.Background(),
		callback(t, map[string]any{"transactionId": "ATPid_1", "status": "Success"}))
	assert.NotEmpty(t, jobID)

	assert.Eventually(t, func() bool {
		p := f.Payments.GetPayment(result.PaymentID)
		return p != nil && p.Status == domain.PaymentStatusReceived
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleProviderCallback_WithoutQueue(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)

	f.PaymentSvc.HandleProviderCallback(context.Background(),
		callback(t, map[string]any{"transactionId": "ATPid_1", "status": "Failed"}))
	f.PaymentSvc.Drain()

	assert.Equal(t, domain.PaymentStatusFailed, f.Payments.GetPayment(result.PaymentID).Status)
}

type rejectingDispatcher struct{}

func (rejectingDispatcher) Enqueue(ctx context.Context, job queue.Job) error {
	return queue.ErrQueueFull
}

func TestHandleProviderCallback_BoundedWhenQueueRejects(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	ctx := context.Background()

	opts := service.DefaultPaymentOptions
	opts.BackgroundLimit = 1
	svc := service.NewPaymentService(f.Payments, f.Trips, f.UoW, f.Locks, f.Gateway, f.TripService, f.Notifications, opts, logger.Discard())
	svc.SetDispatcher(rejectingDispatcher{})

	const n = 5
	var ids []string
	for i := 0; i < n; i++ {
		trip := f.PendingTrip(fmt.Sprintf("trip-%d", i), "2100")
		result, err := svc.InitiatePayment(ctx, Conductor, trip.ID, "0712345678")
		require.NoError(t, err)
		ids = append(ids, result.PaymentID)
	}

	for i := 1; i <= n; i++ {
		svc.HandleProviderCallback(ctx, callback(t, map[string]any{
			"transactionId": fmt.Sprintf("ATPid_%d", i),
			"status":        "Success",
		}))
	}
	svc.Drain()

	for _, id := range ids {
		assert.Equal(t, domain.PaymentStatusReceived, f.Payments.GetPayment(id).Status, id)
	}
}

func TestGetPaymentStatus_LooksUpAnyIdentifier(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	trip := f.PendingTrip("trip-1", "2100")
	result := initiate(t, f, trip.ID)
	ctx := context.Background()

	for _, key := range []string{result.PaymentID, "ws_CO_1", "ATPid_1"} {
		p, err := f.PaymentSvc.GetPaymentStatus(ctx, Conductor, key)
		require.NoError(t, err, key)
		assert.Equal(t, result.PaymentID, p.ID, key)
	}

	_, err := f.PaymentSvc.GetPaymentStatus(ctx, Conductor, "nope")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.PaymentSvc.GetPaymentStatus(ctx, Driver2, result.PaymentID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}
