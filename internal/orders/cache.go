package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] view, KEYS[2] version. ARGV[1] expected version, ARGV[2] payload,
// ARGV[3] ttl in milliseconds (0 keeps the key without expiry).
var setIfVersionScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// minVersionTTL keeps version counters alive well past any in-flight load.
const minVersionTTL = time.Hour

type RedisViewCache struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	versionTTL time.Duration
}

func NewRedisViewCache(client *redis.Client, prefix string, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		versionTTL: max(10*ttl, minVersionTTL),
	}
}

func (c *RedisViewCache) key(orderID string) string {
	return fmt.Sprintf("%s:status-view:%s", c.prefix, orderID)
}

func (c *RedisViewCache) versionKey(orderID string) string {
	return fmt.Sprintf("%s:status-view-version:%s", c.prefix, orderID)
}

func (c *RedisViewCache) Get(ctx context.Context, orderID string) (*OrderStatusView, error) {
	data, err := c.client.Get(ctx, c.key(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view OrderStatusView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("decode cached status view: %w", err)
	}
	return &view, nil
}

// Version reports 0 for an order that was never invalidated.
func (c *RedisViewCache) Version(ctx context.Context, orderID string) (int64, error) {
	version, err := c.client.Get(ctx, c.versionKey(orderID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

func (c *RedisViewCache) SetIfVersion(ctx context.Context, view *OrderStatusView, version int64) (bool, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return false, err
	}

	keys := []string{c.key(view.OrderID), c.versionKey(view.OrderID)}
	stored, err := setIfVersionScript.Run(ctx, c.client, keys,
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Delete advances the version before dropping the view so a concurrent
// SetIfVersion holding the old version is rejected.
func (c *RedisViewCache) Delete(ctx context.Context, orderID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(orderID))
		pipe.Expire(ctx, c.versionKey(orderID), c.versionTTL)
		pipe.Del(ctx, c.key(orderID))
		return nil
	})
	return err
}
