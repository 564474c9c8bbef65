// ABOUTME: Redis-backed conversation state and cooldowns for multi-process deployments
// ABOUTME: States are JSON values with key TTLs; cooldowns are PX-expiring markers

package convstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "storefront:"

// RedisStore implements Store on Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wraps an existing client. ttl <= 0 keeps states until deleted.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) stateKey(key Key) string {
	return s.prefix + "state:" + key.String()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key Key) (State, bool, error) {
	raw, err := s.client.Get(ctx, s.stateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("reading state %s: %w", key, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false, fmt.Errorf("decoding state %s: %w", key, err)
	}
	return state, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key Key, state State) error {
	state.UpdatedAt = s.now()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.stateKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing state %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.stateKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting state %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// RedisCooldowns implements Cooldowns on Redis.
type RedisCooldowns struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldowns wraps an existing client.
func NewRedisCooldowns(client *redis.Client, prefix string) *RedisCooldowns {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCooldowns{client: client, prefix: prefix}
}

// Remaining implements Cooldowns.
func (c *RedisCooldowns) Remaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, c.prefix+"cooldown:"+key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading cooldown %s: %w", key, err)
	}
	// -2 missing, -1 no expiry; neither is an active window
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Start implements Cooldowns.
func (c *RedisCooldowns) Start(ctx context.Context, key string, window time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+"cooldown:"+key, "1", window).Err(); err != nil {
		return fmt.Errorf("starting cooldown %s: %w", key, err)
	}
	return nil
}
