package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FareType labels the fare a conductor charges on a trip.
type FareType string

const (
	FareTypeNormal   FareType = "normal"
	FareTypeRushHour FareType = "rush_hour"
	FareTypeOffPeak  FareType = "off_peak"
	FareTypeRain     FareType = "rain"
)

// ParseFareType normalizes an external fare type string.
func ParseFareType(s string) (FareType, bool) {
	ft := FareType(strings.ToLower(strings.TrimSpace(s)))
	switch ft {
	case FareTypeNormal, FareTypeRushHour, FareTypeOffPeak, FareTypeRain:
		return ft, true
	}
	return ft, false
}

// Route represents a matatu route between two stages.
type Route struct {
	ID          string
	Name        string
	Origin      string
	Destination string
	DistanceKm  *float64
	FareRules   []FareRule
	CreatedAt   time.Time
}

// FareFor returns the rule for the given fare type, if the route has one.
func (r *Route) FareFor(ft FareType) (FareRule, bool) {
	for _, rule := range r.FareRules {
		if rule.FareType == ft {
			return rule, true
		}
	}
	return FareRule{}, false
}

// FareRule is the price of one seat on a route for a fare type.
type FareRule struct {
	ID       string
	RouteID  string
	FareType FareType
	Amount   decimal.Decimal
}
