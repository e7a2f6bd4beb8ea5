package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/domain"
	"matatu/internal/handler"
	"matatu/internal/logger"
	"matatu/internal/tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*tests.Fixture
	router *gin.Engine
}

func newTestServer(t *testing.T, client *redis.Client) *testServer {
	t.Helper()
	f := tests.NewFixture()

	router := NewRouter(RouterDeps{
		UserHandler:    handler.NewUserHandler(f.UserService),
		RouteHandler:   handler.NewRouteHandler(f.FareService),
		VehicleHandler: handler.NewVehicleHandler(f.VehicleSvc),
		TripHandler:    handler.NewTripHandler(f.TripService),
		PaymentHandler: handler.NewPaymentHandler(f.PaymentSvc),
		RevenueHandler: handler.NewRevenueHandler(f.Revenue),
		WalletHandler:  handler.NewWalletHandler(f.WalletSvc),
		AlertHandler:   handler.NewAlertHandler(f.Notifications),
		Tokens:         f.Tokens,
		RedisClient:    client,
		Log:            logger.Discard(),
	})

	return &testServer{Fixture: f, router: router}
}

func (s *testServer) token(t *testing.T, p domain.Principal) string {
	t.Helper()
	tok, err := s.Tokens.Issue(&domain.User{ID: p.UserID, Role: p.Role})
	require.NoError(t, err)
	return tok
}

// do performs a request as p. A zero principal sends no Authorization header.
func (s *testServer) do(t *testing.T, method, path string, p domain.Principal, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, p))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func tripBody(fareType string) map[string]string {
	return map[string]string{
		"route_id":   tests.RouteID,
		"vehicle_id": tests.VehicleID,
		"driver_id":  tests.DriverID,
		"fare_type":  fareType,
	}
}

// ──────────────────────────────────────────────
// MIDDLEWARE
// ──────────────────────────────────────────────

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/health", domain.Principal{}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/v1/trips", domain.Principal{}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/v1/trips", domain.Principal{}, nil, "Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodOptions, "/v1/trips", domain.Principal{}, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/health", domain.Principal{}, nil, "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

// ──────────────────────────────────────────────
// USERS
// ──────────────────────────────────────────────

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	body := map[string]string{
		"name":         "New Conductor",
		"phone_number": "0722000111",
		"password":     "s3cret-pass",
		"role":         "conductor",
	}

	// Users exist, so anonymous registration is refused.
	w := s.do(t, http.MethodPost, "/v1/auth/register", domain.Principal{}, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/register", tests.Driver, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/register", tests.Sacco, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "0722000111", decode(t, w)["phone_number"])

	w = s.do(t, http.MethodPost, "/v1/auth/register", tests.Sacco, body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", domain.Principal{}, map[string]string{
		"phone_number": "0722000111",
		"password":     "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["token"])

	w = s.do(t, http.MethodPost, "/v1/auth/login", domain.Principal{}, map[string]string{
		"phone_number": "0722000111",
		"password":     "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ──────────────────────────────────────────────
// TRIPS AND SPLITS
// ──────────────────────────────────────────────

func TestCreateAndConfirmTrip(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/trips", tests.Conductor, tripBody("normal"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trip := decode(t, w)
	assert.Equal(t, "2100.00", trip["total_amount"])
	assert.Equal(t, "pending", trip["status"])
	assert.EqualValues(t, 14, trip["passenger_count"])
	id := trip["id"].(string)

	w = s.do(t, http.MethodPost, "/v1/trips/"+id+"/confirm", tests.Driver2, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/trips/"+id+"/confirm", tests.Driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmed := decode(t, w)
	split := confirmed["revenue_split"].(map[string]any)
	assert.Equal(t, "840.00", split["owner_amount"])
	assert.Equal(t, "105.00", split["maintenance_amount"])

	w = s.do(t, http.MethodPost, "/v1/trips/"+id+"/confirm", tests.Driver, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/v1/revenue-splits/"+split["id"].(string)+"/verify", tests.Owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["valid"])

	w = s.do(t, http.MethodGet, "/v1/alerts", tests.Owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["alerts"], 1)
}

func TestCreateTrip_ErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name      string
		principal domain.Principal
		body      any
		want      int
	}{
		{"unknown fare type", tests.Conductor, tripBody("holiday"), http.StatusBadRequest},
		{"driver cannot create", tests.Driver, tripBody("normal"), http.StatusForbidden},
		{"malformed body", tests.Conductor, []byte("{"), http.StatusBadRequest},
	}

	for _, tt := range cases {
		w := s.do(t, http.MethodPost, "/v1/trips", tt.principal, tt.body)
		assert.Equal(t, tt.want, w.Code, tt.name)
	}

	w := s.do(t, http.MethodGet, "/v1/trips/trip-missing", tests.Sacco, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTrip_Visibility(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.PendingTrip("trip-1", "2100")

	w := s.do(t, http.MethodGet, "/v1/trips/"+trip.ID, tests.Driver2, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/trips/"+trip.ID, tests.Owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/trips", tests.Driver2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["trips"])
}

// ──────────────────────────────────────────────
// PAYMENTS
// ──────────────────────────────────────────────

func TestInitiatePayment_DuplicateReturnsPaymentID(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.PendingTrip("trip-1", "2100")
	body := map[string]string{"trip_id": trip.ID, "phone_number": "0712345678"}

	w := s.do(t, http.MethodPost, "/v1/payments", tests.Conductor, body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	first := decode(t, w)
	assert.Equal(t, "pending", first["status"])

	w = s.do(t, http.MethodPost, "/v1/payments", tests.Conductor, body)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, first["payment_id"], decode(t, w)["payment_id"])
	assert.Equal(t, 1, s.Gateway.Calls())
}

func TestInitiatePayment_RequiresTripID(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/payments", tests.Conductor, map[string]string{"phone_number": "0712345678"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_AlwaysAcknowledged(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range [][]byte{[]byte("not json"), []byte(`{"status":"Success"}`), nil} {
		w := s.do(t, http.MethodPost, "/v1/payments/callback", domain.Principal{}, body)
		assert.Equal(t, http.StatusOK, w.Code)
		out := decode(t, w)
		assert.Equal(t, true, out["ack"])
		assert.NotEmpty(t, out["id"])
	}
}

func TestCallback_CompletesTrip(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.PendingTrip("trip-1", "2100")

	w := s.do(t, http.MethodPost, "/v1/payments", tests.Conductor,
		map[string]string{"trip_id": trip.ID, "phone_number": "0712345678"})
	require.Equal(t, http.StatusAccepted, w.Code)
	paymentID := decode(t, w)["payment_id"].(string)

	w = s.do(t, http.MethodPost, "/v1/payments/callback", domain.Principal{},
		[]byte(`{"transactionId":"ATPid_1","status":"Success","receiptNumber":"QKT4ABC123"}`))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		return s.Trips.GetTrip(trip.ID).Status == domain.TripStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/v1/payments/"+paymentID, tests.Conductor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "received", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/v1/payments/ATPid_1", tests.Driver2, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/trips/"+trip.ID+"/payments", tests.Owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["payments"], 1)
}

func TestConfirmAfterCallback_CreatesSplit(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.PendingTrip("trip-1", "2100")

	w := s.do(t, http.MethodPost, "/v1/payments", tests.Conductor,
		map[string]string{"trip_id": trip.ID, "phone_number": "0712345678"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(t, http.MethodPost, "/v1/payments/callback", domain.Principal{},
		[]byte(`{"transactionId":"ATPid_1","status":"Success"}`))
	require.Equal(t, http.StatusOK, w.Code)
	s.PaymentSvc.Drain()
	require.Equal(t, domain.TripStatusCompleted, s.Trips.GetTrip(trip.ID).Status)

	w = s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/confirm", tests.Driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	split := decode(t, w)["revenue_split"].(map[string]any)
	assert.Equal(t, "525.00", split["driver_amount"])

	w = s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/confirm", tests.Driver, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// ──────────────────────────────────────────────
// WALLET AND ANALYTICS
// ──────────────────────────────────────────────

func TestWithdrawalFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.PaidTrip("trip-1", "2100")

	w := s.do(t, http.MethodGet, "/v1/wallet/balance", tests.Driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "525.00", decode(t, w)["balance"])

	w = s.do(t, http.MethodPost, "/v1/wallet/withdrawals", tests.Driver, map[string]any{"amount": 600})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "insufficient balance", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/v1/wallet/withdrawals", tests.Driver, map[string]any{"amount": "200", "note": "fuel"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	withdrawal := decode(t, w)
	assert.Equal(t, "pending", withdrawal["status"])
	assert.Equal(t, "200.00", withdrawal["amount"])
	id := withdrawal["id"].(string)

	w = s.do(t, http.MethodGet, "/v1/wallet/balance", tests.Driver, nil)
	assert.Equal(t, "325.00", decode(t, w)["balance"])

	w = s.do(t, http.MethodPost, "/v1/withdrawals/"+id+"/process", tests.Owner, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/withdrawals/"+id+"/process", tests.Sacco, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	processed := decode(t, w)
	assert.Equal(t, "approved", processed["status"])
	assert.Equal(t, tests.SaccoID, processed["processed_by"])

	w = s.do(t, http.MethodPost, "/v1/withdrawals/"+id+"/process", tests.Sacco, map[string]string{"action": "decline"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/v1/withdrawals", tests.Sacco, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["withdrawals"], 1)
}

func TestRevenueSplitAnalytics(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/v1/analytics/revenue-split", tests.Owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	empty := decode(t, w)
	assert.EqualValues(t, 0, empty["trips"])
	assert.EqualValues(t, 0, empty["owner"])

	s.PaidTrip("trip-1", "2100")

	w = s.do(t, http.MethodGet, "/v1/analytics/revenue-split", tests.Owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode(t, w)
	assert.EqualValues(t, 1, sum["trips"])
	assert.Equal(t, "2100.00", sum["total_amount"])
	assert.EqualValues(t, 50, sum["owner"])
	assert.EqualValues(t, 31, sum["driver"])
	assert.EqualValues(t, 19, sum["conductor"])
}

// ──────────────────────────────────────────────
// IDEMPOTENCY
// ──────────────────────────────────────────────

func TestIdempotencyKey_ReplaysResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := newTestServer(t, client)

	first := s.do(t, http.MethodPost, "/v1/trips", tests.Conductor, tripBody("normal"), "Idempotency-Key", "abc-1")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replay"))

	second := s.do(t, http.MethodPost, "/v1/trips", tests.Conductor, tripBody("normal"), "Idempotency-Key", "abc-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, s.Trips.CountTrips())

	// A fresh key creates a new trip.
	third := s.do(t, http.MethodPost, "/v1/trips", tests.Conductor, tripBody("normal"), "Idempotency-Key", "abc-2")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, 2, s.Trips.CountTrips())
}

func TestIdempotencyKey_RedisDownStillServes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := newTestServer(t, client)
	mr.Close()

	w := s.do(t, http.MethodPost, "/v1/trips", tests.Conductor, tripBody("normal"), "Idempotency-Key", "abc-1")
	assert.Equal(t, http.StatusCreated, w.Code)
}
