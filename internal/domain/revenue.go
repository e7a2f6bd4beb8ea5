package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RevenueSplit is the immutable per-payee breakdown of a trip's total fare.
type RevenueSplit struct {
	ID                string
	TripID            string
	TotalAmount       decimal.Decimal
	OwnerAmount       decimal.Decimal
	DriverAmount      decimal.Decimal
	ConductorAmount   decimal.Decimal
	SaccoAmount       decimal.Decimal
	MaintenanceAmount decimal.Decimal
	OwnerID           string
	DriverID          string
	ConductorID       string
	IntegrityHash     string
	CreatedAt         time.Time
}

// SharesTotal returns the sum of the five shares.
func (s *RevenueSplit) SharesTotal() decimal.Decimal {
	return s.OwnerAmount.
		Add(s.DriverAmount).
		Add(s.ConductorAmount).
		Add(s.SaccoAmount).
		Add(s.MaintenanceAmount)
}

// Fingerprint returns the SHA-256 of the trip id and the six amounts,
// serialized as sorted key=value pairs so field order never matters.
func (s *RevenueSplit) Fingerprint() string {
	fields := map[string]string{
		"tripId":            s.TripID,
		"totalAmount":       s.TotalAmount.StringFixed(2),
		"ownerAmount":       s.OwnerAmount.StringFixed(2),
		"driverAmount":      s.DriverAmount.StringFixed(2),
		"conductorAmount":   s.ConductorAmount.StringFixed(2),
		"saccoAmount":       s.SaccoAmount.StringFixed(2),
		"maintenanceAmount": s.MaintenanceAmount.StringFixed(2),
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(sum[:])
}

// VisibleTo reports whether the principal may read the split.
func (s *RevenueSplit) VisibleTo(p Principal) bool {
	switch p.Role {
	case RoleOwner:
		return s.OwnerID == p.UserID
	case RoleDriver:
		return s.DriverID == p.UserID
	case RoleConductor:
		return s.ConductorID == p.UserID
	default:
		return p.Role.IsAdmin()
	}
}

// ShareOf returns what the split pays userID as owner, driver or conductor.
func (s *RevenueSplit) ShareOf(userID string) decimal.Decimal {
	share := decimal.Zero
	if s.OwnerID == userID {
		share = share.Add(s.OwnerAmount)
	}
	if s.DriverID == userID {
		share = share.Add(s.DriverAmount)
	}
	if s.ConductorID == userID {
		share = share.Add(s.ConductorAmount)
	}
	return share
}

// RevenueSummary totals the splits of paid trips.
type RevenueSummary struct {
	Trips       int
	Total       decimal.Decimal
	Owner       decimal.Decimal
	Driver      decimal.Decimal
	Conductor   decimal.Decimal
	Sacco       decimal.Decimal
	Maintenance decimal.Decimal
}

// Add folds one split into the summary.
func (s *RevenueSummary) Add(split *RevenueSplit) {
	s.Trips++
	s.Total = s.Total.Add(split.TotalAmount)
	s.Owner = s.Owner.Add(split.OwnerAmount)
	s.Driver = s.Driver.Add(split.DriverAmount)
	s.Conductor = s.Conductor.Add(split.ConductorAmount)
	s.Sacco = s.Sacco.Add(split.SaccoAmount)
	s.Maintenance = s.Maintenance.Add(split.MaintenanceAmount)
}

// PayeeShares returns the owner, driver and conductor percentages of their
// combined amount in whole percent. The conductor takes the rounding
// remainder so the three always sum to 100, or all are zero when nothing
// has been paid.
func (s *RevenueSummary) PayeeShares() (owner, driver, conductor int64) {
	base := s.Owner.Add(s.Driver).Add(s.Conductor)
	if !base.IsPositive() {
		return 0, 0, 0
	}

	hundred := decimal.NewFromInt(100)
	owner = s.Owner.Mul(hundred).Div(base).Round(0).IntPart()
	driver = s.Driver.Mul(hundred).Div(base).Round(0).IntPart()
	return owner, driver, 100 - owner - driver
}
