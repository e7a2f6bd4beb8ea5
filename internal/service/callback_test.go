package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/domain"
)

func TestExtractCallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want CallbackRecord
	}{
		{
			name: "africas talking checkout",
			raw: `{"category":"MobileCheckout","transactionId":"ATPid_1","status":"Success",
				"requestMetadata":{"x":"y"},"metadata":{"reference":"trip-abc-1700000000000"}}`,
			want: CallbackRecord{ProviderRef: "ATPid_1", Reference: "trip-abc-1700000000000", Status: "Success"},
		},
		{
			name: "metadata as string",
			raw:  `{"providerRefId":"P1","status":"Failed","metadata":"{\"referenceId\":\"trip-x-1\"}"}`,
			want: CallbackRecord{ProviderRef: "P1", Reference: "trip-x-1", Status: "Failed"},
		},
		{
			name: "daraja style",
			raw:  `{"checkoutRequestId":"ws_CO_1","resultCode":0,"mpesaReceiptNumber":"QKT4"}`,
			want: CallbackRecord{SessionID: "ws_CO_1", Status: "0", Receipt: "QKT4"},
		},
		{
			name: "top level reference",
			raw:  `{"reference":"trip-t1-5","transactionStatus":"SUCCESS"}`,
			want: CallbackRecord{Reference: "trip-t1-5", Status: "SUCCESS"},
		},
		{
			name: "blank fields skipped",
			raw:  `{"providerReference":"  ","providerRefId":"P2"}`,
			want: CallbackRecord{ProviderRef: "P2"},
		},
	}

	for _, tt := range tests {
		got, ok := ExtractCallback([]byte(tt.raw))
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.want, *got, tt.name)
	}

	for _, bad := range []string{"", "x", "[]", "null", `"str"`} {
		_, ok := ExtractCallback([]byte(bad))
		assert.False(t, ok, bad)
	}
}

func TestNormalizeCallbackStatus(t *testing.T) {
	tests := map[string]domain.PaymentStatus{
		"":                     domain.PaymentStatusPending,
		"Success":              domain.PaymentStatusReceived,
		"SUCCESSFUL":           domain.PaymentStatusReceived,
		"0":                    domain.PaymentStatusReceived,
		"Unsuccessful":         domain.PaymentStatusFailed,
		"Failed":               domain.PaymentStatusFailed,
		"InvalidRequest Error": domain.PaymentStatusFailed,
		"Cancelled":            domain.PaymentStatusFailed,
		"PendingConfirmation":  domain.PaymentStatusPending,
		"1032":                 domain.PaymentStatusPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCallbackStatus(in), in)
	}
}

func TestPaymentReferenceRoundTrip(t *testing.T) {
	for _, id := range []string{"abc", "0b7e6a0e-2f0c-4d4e-9a55-6f5f6c1d2e3f"} {
		ref := PaymentReference(id, 1700000000123)
		got, ok := TripIDFromReference(ref)
		require.True(t, ok, ref)
		assert.Equal(t, id, got)
	}

	for _, bad := range []string{"", "trip-", "trip-abc", "trip-abc-", "trip--5", "ride-abc-5", "trip-abc-xyz"} {
		_, ok := TripIDFromReference(bad)
		assert.False(t, ok, bad)
	}
}

func TestDuplicateRequestError(t *testing.T) {
	err := error(&DuplicateRequestError{PaymentID: "p-1"})
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Contains(t, err.Error(), "p-1")
	assert.Equal(t, ErrDuplicateRequest.Error(), (&DuplicateRequestError{}).Error())
}
