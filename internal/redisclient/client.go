package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotHeld is returned when a lock expired or was taken over before release
var ErrLockNotHeld = errors.New("lock not held")

const unreadVersionTTL = 24 * time.Hour

// releaseLockScript deletes the lock only while it still carries our token
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// fillUnreadScript caches a counter only if no write bumped the version since it was read
var fillUnreadScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock. The returned token identifies this
// holder and must be passed to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockRedisKey(lockKey), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	deleted, err := releaseLockScript.Run(ctx, c.rdb, []string{lockRedisKey(lockKey)}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%s: %w", lockKey, ErrLockNotHeld)
	}
	return nil
}

func lockRedisKey(lockKey string) string {
	return fmt.Sprintf("lock:%s", lockKey)
}

// GetUnreadCount returns a cached unread counter; ok is false on a cache miss
func (c *Client) GetUnreadCount(ctx context.Context, userID string) (count int, ok bool, err error) {
	val, err := c.rdb.Get(ctx, unreadKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err = strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt unread counter for %s: %w", userID, err)
	}
	return count, true, nil
}

// UnreadCountVersion returns the write version of a user's notifications.
// Read it before counting and hand it to FillUnreadCount.
func (c *Client) UnreadCountVersion(ctx context.Context, userID string) (int64, error) {
	v, err := c.rdb.Get(ctx, unreadVersionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// FillUnreadCount caches count unless the notifications changed after version
// was read. It reports whether the value was stored.
func (c *Client) FillUnreadCount(ctx context.Context, userID string, count int, version int64, ttl time.Duration) (bool, error) {
	stored, err := fillUnreadScript.Run(ctx, c.rdb,
		[]string{unreadVersionKey(userID), unreadKey(userID)},
		strconv.FormatInt(version, 10), count, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateUnreadCount bumps the version and drops the cached counter after
// the notification set changed
func (c *Client) InvalidateUnreadCount(ctx context.Context, userID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, unreadVersionKey(userID))
		pipe.Expire(ctx, unreadVersionKey(userID), unreadVersionTTL)
		pipe.Del(ctx, unreadKey(userID))
		return nil
	})
	return err
}

func unreadKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

func unreadVersionKey(userID string) string {
	return fmt.Sprintf("notifications:unread-version:%s", userID)
}
