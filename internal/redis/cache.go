package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"matatu/internal/domain"
)

// FareCacheTTL bounds how stale a cached fare table can be if an
// invalidation is lost.
const FareCacheTTL = 60 * time.Second

const routeFaresPrefix = "cache:route-fares:"

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client, ttl: FareCacheTTL}
}

// cachedFareRule is the cached form of a fare rule. Amounts are stored as
// strings to keep exact decimals.
type cachedFareRule struct {
	ID       string `json:"id"`
	FareType string `json:"fare_type"`
	Amount   string `json:"amount"`
}

// GetRouteFares returns the cached fare rules of a route.
// A miss returns (nil, false, nil).
func (s *CacheStore) GetRouteFares(ctx context.Context, routeID string) ([]domain.FareRule, bool, error) {
	data, err := s.client.Get(ctx, routeFaresPrefix+routeID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cached []cachedFareRule
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, err
	}

	rules := make([]domain.FareRule, 0, len(cached))
	for _, c := range cached {
		amount, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return nil, false, err
		}
		rules = append(rules, domain.FareRule{
			ID:       c.ID,
			RouteID:  routeID,
			FareType: domain.FareType(c.FareType),
			Amount:   amount,
		})
	}

	return rules, true, nil
}

// SetRouteFares caches the fare rules of a route.
func (s *CacheStore) SetRouteFares(ctx context.Context, routeID string, rules []domain.FareRule) error {
	cached := make([]cachedFareRule, 0, len(rules))
	for _, r := range rules {
		cached = append(cached, cachedFareRule{
			ID:       r.ID,
			FareType: string(r.FareType),
			Amount:   r.Amount.StringFixed(2),
		})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, routeFaresPrefix+routeID, data, s.ttl).Err()
}

// InvalidateRouteFares removes the cached fare rules of a route.
func (s *CacheStore) InvalidateRouteFares(ctx context.Context, routeID string) error {
	return s.client.Del(ctx, routeFaresPrefix+routeID).Err()
}
