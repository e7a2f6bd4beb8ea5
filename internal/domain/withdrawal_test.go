package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseWithdrawalAction(t *testing.T) {
	tests := []struct {
		in   string
		want WithdrawalStatus
		ok   bool
	}{
		{"approve", WithdrawalStatusApproved, true},
		{" Decline ", WithdrawalStatusDeclined, true},
		{"pending", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseWithdrawalAction(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWithdrawalStatus_Reserves(t *testing.T) {
	assert.True(t, WithdrawalStatusPending.Reserves())
	assert.True(t, WithdrawalStatusApproved.Reserves())
	assert.False(t, WithdrawalStatusDeclined.Reserves())
}

func TestWallet_Available(t *testing.T) {
	w := Wallet{
		Earned:   decimal.RequireFromString("840"),
		Reserved: decimal.RequireFromString("300.50"),
	}
	assert.True(t, decimal.RequireFromString("539.50").Equal(w.Available()))
}
