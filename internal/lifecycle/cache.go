package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/redisx"
)

// RedisStatusCache mirrors the latest order status into redis so the read
// path can skip the database.
type RedisStatusCache struct {
	RDB *redis.Client
}

func (c *RedisStatusCache) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	payload := fmt.Sprintf(`{"status":%q}`, string(status))
	return c.RDB.Set(ctx, key, payload, redisx.TTLStatusCache).Err()
}

func (c *RedisStatusCache) GetStatus(ctx context.Context, orderID string) (orders.Status, bool, error) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	s, err := c.RDB.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var body struct {
		Status orders.Status `json:"status"`
	}
	if err := json.Unmarshal([]byte(s), &body); err != nil {
		return "", false, nil
	}
	return body.Status, true, nil
}
