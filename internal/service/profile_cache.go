package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"auth-service/internal/domain"
)

// ProfileCache guarda la vista pública del usuario por id.
// Un miss o un error del store se tratan igual: el caller vuelve a la base.
type ProfileCache interface {
	Get(ctx context.Context, userID int64) (domain.UserProfile, bool, error)
	Set(ctx context.Context, profile domain.UserProfile) error
	Invalidate(ctx context.Context, userID int64) error
}

type memoryProfileCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[int64]cachedProfile
	now   func() time.Time
}

type cachedProfile struct {
	profile   domain.UserProfile
	expiresAt time.Time
}

func NewMemoryProfileCache(ttl time.Duration) ProfileCache {
	return &memoryProfileCache{
		ttl:   ttl,
		items: make(map[int64]cachedProfile),
		now:   time.Now,
	}
}

func (c *memoryProfileCache) Get(_ context.Context, userID int64) (domain.UserProfile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[userID]
	if !ok {
		return domain.UserProfile{}, false, nil
	}
	if c.now().After(item.expiresAt) {
		delete(c.items, userID)
		return domain.UserProfile{}, false, nil
	}
	return item.profile, true, nil
}

func (c *memoryProfileCache) Set(_ context.Context, profile domain.UserProfile) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[profile.ID] = cachedProfile{profile: profile, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryProfileCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	return nil
}

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisProfileCache struct {
	client  redisKVClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisProfileCache usa claves user_profile:{id}. Devuelve nil si no hay cliente.
func NewRedisProfileCache(client *redis.Client, ttl time.Duration) ProfileCache {
	if client == nil {
		return nil
	}
	return &redisProfileCache{
		client:  client,
		prefix:  "user_profile:",
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
	}
}

func (c *redisProfileCache) key(userID int64) string {
	return c.prefix + strconv.FormatInt(userID, 10)
}

func (c *redisProfileCache) Get(ctx context.Context, userID int64) (domain.UserProfile, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err == redis.Nil {
		return domain.UserProfile{}, false, nil
	}
	if err != nil {
		return domain.UserProfile{}, false, err
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.UserProfile{}, false, err
	}
	return profile, true, nil
}

func (c *redisProfileCache) Set(ctx context.Context, profile domain.UserProfile) error {
	if c.ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Set(ctx, c.key(profile.ID), payload, c.ttl).Err()
}

func (c *redisProfileCache) Invalidate(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Del(ctx, c.key(userID)).Err()
}
