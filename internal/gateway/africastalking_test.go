package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfricasTalkingClient_InitiateCharge_Success(t *testing.T) {
	var got http.Header
	var form map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, checkoutPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		got = r.Header.Clone()
		form = map[string]string{
			"username":     r.PostForm.Get("username"),
			"phoneNumber":  r.PostForm.Get("phoneNumber"),
			"amount":       r.PostForm.Get("amount"),
			"currencyCode": r.PostForm.Get("currencyCode"),
			"metadata":     r.PostForm.Get("metadata"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"PendingConfirmation","transactionId":"ATPid_1","checkoutRequestId":"ws_CO_9"}`))
	}))
	defer srv.Close()

	client := NewAfricasTalkingClient(Config{
		Username:    "sandbox",
		APIKey:      "secret",
		ProductName: "matatu-fares",
		BaseURL:     srv.URL,
	})

	res, err := client.InitiateCharge(context.Background(), ChargeRequest{
		Phone:     "254712345678",
		Amount:    decimal.RequireFromString("2100.40"),
		Reference: "trip-abc-1700000000000",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "ATPid_1", res.ProviderRef)
	assert.Equal(t, "ws_CO_9", res.SessionID)
	assert.Equal(t, "secret", got.Get("apiKey"))
	assert.Equal(t, "+254712345678", form["phoneNumber"])
	assert.Equal(t, "2100", form["amount"])
	assert.Equal(t, "KES", form["currencyCode"])

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(form["metadata"]), &meta))
	assert.Equal(t, "trip-abc-1700000000000", meta["reference"])
}

func TestAfricasTalkingClient_InitiateCharge_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessage":"The supplied authentication is invalid"}`))
	}))
	defer srv.Close()

	client := NewAfricasTalkingClient(Config{Username: "sandbox", BaseURL: srv.URL})

	res, err := client.InitiateCharge(context.Background(), ChargeRequest{
		Phone:     "254712345678",
		Amount:    decimal.NewFromInt(100),
		Reference: "trip-x-1",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "The supplied authentication is invalid", res.Error)
}

func TestAfricasTalkingClient_InitiateCharge_FailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"Failed","description":"Invalid product"}`))
	}))
	defer srv.Close()

	client := NewAfricasTalkingClient(Config{Username: "sandbox", BaseURL: srv.URL})

	res, err := client.InitiateCharge(context.Background(), ChargeRequest{Phone: "254112345678", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid product", res.Error)
}

func TestAfricasTalkingClient_InitiateCharge_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewAfricasTalkingClient(Config{Username: "sandbox", BaseURL: srv.URL})

	_, err := client.InitiateCharge(context.Background(), ChargeRequest{Phone: "254712345678", Amount: decimal.NewFromInt(50)})
	assert.Error(t, err)
}

func TestNewAfricasTalkingClient_SelectsEnvironment(t *testing.T) {
	assert.Equal(t, sandboxBaseURL+checkoutPath, NewAfricasTalkingClient(Config{Username: "Sandbox"}).endpoint)
	assert.Equal(t, liveBaseURL+checkoutPath, NewAfricasTalkingClient(Config{Username: "matatu-sacco"}).endpoint)
}

func TestSandboxGateway_InitiateCharge(t *testing.T) {
	g := NewSandboxGateway()

	first, err := g.InitiateCharge(context.Background(), ChargeRequest{})
	require.NoError(t, err)
	second, err := g.InitiateCharge(context.Background(), ChargeRequest{})
	require.NoError(t, err)

	assert.True(t, first.Success)
	assert.NotEqual(t, first.ProviderRef, second.ProviderRef)
	assert.NotEmpty(t, first.SessionID)
}
