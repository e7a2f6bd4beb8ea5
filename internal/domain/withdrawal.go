package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents where a payout request stands.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusDeclined WithdrawalStatus = "declined"
)

// Reserves reports whether the withdrawal still holds funds against the
// requester's wallet. A declined request releases them.
func (s WithdrawalStatus) Reserves() bool {
	return s == WithdrawalStatusPending || s == WithdrawalStatusApproved
}

// ParseWithdrawalAction maps "approve" or "decline" to the status it
// produces.
func ParseWithdrawalAction(action string) (WithdrawalStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		return WithdrawalStatusApproved, true
	case "decline":
		return WithdrawalStatusDeclined, true
	}
	return "", false
}

// Withdrawal is a payee's request to be paid out of their wallet.
type Withdrawal struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Status      WithdrawalStatus
	Note        string
	ReviewNote  string
	ProcessedBy string
	RequestedAt time.Time
	ProcessedAt time.Time
}

// Wallet is a payee's balance, derived from their shares of paid trips
// less the withdrawals still reserving funds.
type Wallet struct {
	UserID   string
	Earned   decimal.Decimal
	Reserved decimal.Decimal
}

// Available is what the payee may still withdraw.
func (w Wallet) Available() decimal.Decimal {
	return w.Earned.Sub(w.Reserved)
}
