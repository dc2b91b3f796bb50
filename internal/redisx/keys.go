package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Cache of the last known order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup for broadcast/event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Per-day reschedule counter: resched:{order_id}:{yyyy-mm-dd} -> count
	KeyRescheduleDay = "resched:%s:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
	TTLRescheduleDay = 26 * time.Hour
)

// RescheduleCounter tracks successful reschedules per order per local day.
// Keys expire shortly after the day ends; a missing key reads as zero.
type RescheduleCounter struct {
	RDB *redis.Client
}

func (c *RescheduleCounter) Today(ctx context.Context, orderID string, day time.Time) (int64, error) {
	n, err := c.RDB.Get(ctx, rescheduleDayKey(orderID, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (c *RescheduleCounter) Bump(ctx context.Context, orderID string, day time.Time) (int64, error) {
	key := rescheduleDayKey(orderID, day)
	n, err := c.RDB.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.RDB.Expire(ctx, key, TTLRescheduleDay).Err()
	return n, nil
}

func rescheduleDayKey(orderID string, day time.Time) string {
	return fmt.Sprintf(KeyRescheduleDay, orderID, day.Format("2006-01-02"))
}
