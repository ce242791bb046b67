package services

import (
	"context"
	"fmt"
	"sync"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"

	"marketplace-service/models"
)

type MockTokenIssuer struct{ mock.Mock }

func (m *MockTokenIssuer) IssueToken(subject, userType string) (string, error) {
	args := m.Called(subject, userType)
	return args.String(0), args.Error(1)
}

type MockIdempotencyStore struct{ mock.Mock }

func (m *MockIdempotencyStore) Reserve(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IdempotencyRecord), args.Error(1)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, summary *models.CheckoutSummary) error {
	args := m.Called(ctx, key, summary)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Fail(ctx context.Context, key string, applied bool) error {
	args := m.Called(ctx, key, applied)
	return args.Error(0)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishCheckoutCompleted(ctx context.Context, event models.CheckoutEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockPresigner struct{ mock.Mock }

func (m *MockPresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*v4.PresignedHTTPRequest), args.Error(1)
}

// fakeRankingCache is an in-process RankingCache that counts invalidations.
type fakeRankingCache struct {
	mu            sync.Mutex
	version       int64
	entries       map[string][]models.RankedProduct
	invalidations int
}

func newFakeRankingCache() *fakeRankingCache {
	return &fakeRankingCache{version: 1, entries: make(map[string][]models.RankedProduct)}
}

func rankingKey(version int64, limit int) string {
	return fmt.Sprintf("%d:%d", version, limit)
}

func (c *fakeRankingCache) Get(ctx context.Context, limit int) ([]models.RankedProduct, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[rankingKey(c.version, limit)]
	return r, c.version, ok
}

func (c *fakeRankingCache) Set(ctx context.Context, version int64, limit int, ranked []models.RankedProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rankingKey(version, limit)] = ranked
}

func (c *fakeRankingCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.invalidations++
	return nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	summaries []*models.CheckoutSummary
}

func (r *fakeRecorder) ObserveCheckout(summary *models.CheckoutSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
}

// memoryIdempotencyStore keeps records in a map, keyed exactly as the service passes them.
type memoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{records: map[string]*models.IdempotencyRecord{}}
}

func (m *memoryIdempotencyStore) Reserve(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[key]; ok {
		return r, nil
	}
	m.records[key] = &models.IdempotencyRecord{State: models.IdempotencyPending}
	return nil, nil
}

func (m *memoryIdempotencyStore) Complete(ctx context.Context, key string, summary *models.CheckoutSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = &models.IdempotencyRecord{State: models.IdempotencyCompleted, Summary: summary}
	return nil
}

func (m *memoryIdempotencyStore) Fail(ctx context.Context, key string, applied bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !applied {
		delete(m.records, key)
		return nil
	}
	m.records[key] = &models.IdempotencyRecord{State: models.IdempotencyFailed}
	return nil
}
