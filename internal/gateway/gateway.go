// Package gateway initiates mobile-money charges (STK push) with a
// payment provider.
package gateway

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// ChargeRequest is one STK push to a customer's phone.
type ChargeRequest struct {
	Phone     string // international form, 254XXXXXXXXX
	Amount    decimal.Decimal
	Reference string
}

// ChargeResult is the provider's answer to a charge request. A provider
// that answered but declined the charge returns Success false with Error
// set rather than a Go error.
type ChargeResult struct {
	Success     bool
	ProviderRef string
	SessionID   string
	Status      string
	Error       string
}

// ChargeGateway is the interface for a mobile-money provider.
type ChargeGateway interface {
	InitiateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// SandboxGateway accepts every charge and returns synthetic identifiers.
// It is used when no provider credentials are configured.
type SandboxGateway struct {
	seq atomic.Int64
}

// NewSandboxGateway creates a new SandboxGateway.
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{}
}

// InitiateCharge simulates a successful STK push.
func (g *SandboxGateway) InitiateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := g.seq.Add(1)
	return &ChargeResult{
		Success:     true,
		ProviderRef: fmt.Sprintf("SBX-TX-%06d", n),
		SessionID:   fmt.Sprintf("SBX-CHK-%06d", n),
		Status:      "PendingConfirmation",
	}, nil
}

var (
	_ ChargeGateway = (*SandboxGateway)(nil)
	_ ChargeGateway = (*AfricasTalkingClient)(nil)
)
