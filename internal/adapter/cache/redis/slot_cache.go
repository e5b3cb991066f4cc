package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

const DefaultSlotCacheTTL = 30 * time.Second

// SlotCache keeps slot listings in one hash per activity, one field per
// requested date range, so a single DEL drops every listing of the
// activity.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = DefaultSlotCacheTTL
	}
	return &SlotCache{client: client, ttl: ttl}
}

func cacheKey(activityID uuid.UUID) string {
	return fmt.Sprintf("slots:%s", activityID.String())
}

func rangeField(from, to string) string {
	return from + ":" + to
}

func (c *SlotCache) Get(ctx context.Context, activityID uuid.UUID, from, to string) ([]domain.Slot, bool, error) {
	raw, err := c.client.HGet(ctx, cacheKey(activityID), rangeField(from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var slots []domain.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("decode cached slots: %w", err)
	}
	return slots, true, nil
}

func (c *SlotCache) Set(ctx context.Context, activityID uuid.UUID, from, to string, slots []domain.Slot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}

	key := cacheKey(activityID)
	if err := c.client.HSet(ctx, key, rangeField(from, to), raw).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, c.ttl).Err()
}

func (c *SlotCache) Invalidate(ctx context.Context, key domain.SlotKey) error {
	return c.client.Del(ctx, cacheKey(key.ActivityID)).Err()
}
