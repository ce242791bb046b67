package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace-service/models"
)

const (
	IdempotencyPrefix = "checkout:idem:"

	DefaultIdempotencyTTL = 24 * time.Hour
	// A pending reservation outlives any request timeout but expires if the
	// process dies mid checkout.
	pendingTTL = 2 * time.Minute
)

// IdempotencyStore keeps one record per checkout idempotency key in Redis.
type IdempotencyStore struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewIdempotencyStore(client redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{redis: client, ttl: ttl}
}

// Reserve claims key with SETNX. It returns nil when the key was free and the
// existing record otherwise.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	pending, err := json.Marshal(models.IdempotencyRecord{State: models.IdempotencyPending})
	if err != nil {
		return nil, err
	}

	ok, err := s.redis.SetNX(ctx, IdempotencyPrefix+key, pending, pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	data, err := s.redis.Get(ctx, IdempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; report it as still running.
		return &models.IdempotencyRecord{State: models.IdempotencyPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var record models.IdempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &record, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, summary *models.CheckoutSummary) error {
	data, err := json.Marshal(models.IdempotencyRecord{State: models.IdempotencyCompleted, Summary: summary})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, IdempotencyPrefix+key, data, s.ttl).Err()
}

// Fail releases the key when nothing was applied. Otherwise the key is kept in
// the failed state so a retry cannot count the applied items twice.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, applied bool) error {
	if !applied {
		return s.redis.Del(ctx, IdempotencyPrefix+key).Err()
	}
	data, err := json.Marshal(models.IdempotencyRecord{State: models.IdempotencyFailed})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, IdempotencyPrefix+key, data, s.ttl).Err()
}
