package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds the caller's token,
// so an expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held lock. Release it with LockStore.Release.
type Lock struct {
	Key   string
	Token string
}

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// PaymentLockKey is the debounce key for charging phone for trip.
func PaymentLockKey(tripID, phone string) string {
	return fmt.Sprintf("lock:payment:%s:%s", tripID, phone)
}

// AcquirePaymentLock attempts to take the payment debounce lock for a trip
// and phone. Returns nil if the lock is already held.
func (s *LockStore) AcquirePaymentLock(ctx context.Context, tripID, phone string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{Key: PaymentLockKey(tripID, phone), Token: uuid.NewString()}

	ok, err := s.client.SetNX(ctx, lock.Key, lock.Token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return lock, nil
}

// Release releases a lock previously acquired by this caller.
func (s *LockStore) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return releaseScript.Run(ctx, s.client, []string{lock.Key}, lock.Token).Err()
}

// ClearPaymentLock drops the debounce lock for a trip and phone regardless
// of who holds it. Used once a charge has definitively failed.
func (s *LockStore) ClearPaymentLock(ctx context.Context, tripID, phone string) error {
	return s.client.Del(ctx, PaymentLockKey(tripID, phone)).Err()
}
