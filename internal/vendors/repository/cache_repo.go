package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vendortrack/vendorperf/internal/vendors/domain"
)

const (
	summaryKeyPrefix = "vendor:summary:" // vendor:summary:{vendor_id}
	summaryIndexKey  = "vendor:summaries" // set of vendor ids with a published summary
	summaryTTL       = 7 * 24 * time.Hour
)

// CacheRepository publishes vendor summaries to Redis for fast reads.
// The cache is derived data with a TTL; a recompute pass repopulates it.
type CacheRepository struct {
	client *redis.Client
}

// NewCacheRepository creates a new CacheRepository
func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{client: client}
}

// Publish stores one summary and indexes the vendor id, atomically via a
// pipeline.
func (r *CacheRepository) Publish(ctx context.Context, s *domain.VendorPerformanceSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.summaryKey(s.VendorID), data, summaryTTL)
	pipe.SAdd(ctx, summaryIndexKey, s.VendorID)
	pipe.Expire(ctx, summaryIndexKey, summaryTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish summary: %w", err)
	}
	return nil
}

// Get returns a published summary, or nil when none is cached.
func (r *CacheRepository) Get(ctx context.Context, vendorID string) (*domain.VendorPerformanceSummary, error) {
	data, err := r.client.Get(ctx, r.summaryKey(vendorID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	var s domain.VendorPerformanceSummary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &s, nil
}

// ListVendorIDs returns the vendors with a published summary.
func (r *CacheRepository) ListVendorIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, summaryIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list published vendors: %w", err)
	}
	return ids, nil
}

func (r *CacheRepository) summaryKey(vendorID string) string {
	return summaryKeyPrefix + vendorID
}
