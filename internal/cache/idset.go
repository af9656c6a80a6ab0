package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"unify/internal/models"

	"github.com/redis/go-redis/v9"
)

// IDSetCache holds the local copy of a user's saved or cart ids. A set that
// was never hydrated reports Hydrated false and must be loaded from the
// backing store before it is trusted.
type IDSetCache interface {
	Hydrated(ctx context.Context, kind models.ListKind, uid string) (bool, error)
	Replace(ctx context.Context, kind models.ListKind, uid string, ids []string) error
	Add(ctx context.Context, kind models.ListKind, uid, id string) error
	Remove(ctx context.Context, kind models.ListKind, uid, id string) error
	Members(ctx context.Context, kind models.ListKind, uid string) ([]string, error)
	Contains(ctx context.Context, kind models.ListKind, uid, id string) (bool, error)
	Invalidate(ctx context.Context, kind models.ListKind, uid string) error
}

// SetKey is the Redis key of one user's id set.
func SetKey(kind models.ListKind, uid string) string {
	return fmt.Sprintf("idset:%s:%s", kind, uid)
}

// HydratedKey marks a set as loaded from the backing store.
func HydratedKey(kind models.ListKind, uid string) string {
	return SetKey(kind, uid) + ":hydrated"
}

type memorySet struct {
	ids      map[string]struct{}
	hydrated bool
}

// MemorySetCache is the in-process IDSetCache.
type MemorySetCache struct {
	mu   sync.Mutex
	sets map[string]*memorySet
}

// NewMemorySetCache returns an empty cache.
func NewMemorySetCache() *MemorySetCache {
	return &MemorySetCache{sets: make(map[string]*memorySet)}
}

func (c *MemorySetCache) get(kind models.ListKind, uid string) *memorySet {
	key := SetKey(kind, uid)
	s, ok := c.sets[key]
	if !ok {
		s = &memorySet{ids: make(map[string]struct{})}
		c.sets[key] = s
	}
	return s
}

func (c *MemorySetCache) Hydrated(_ context.Context, kind models.ListKind, uid string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(kind, uid).hydrated, nil
}

func (c *MemorySetCache) Replace(_ context.Context, kind models.ListKind, uid string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.get(kind, uid)
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.hydrated = true
	return nil
}

func (c *MemorySetCache) Add(_ context.Context, kind models.ListKind, uid, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(kind, uid).ids[id] = struct{}{}
	return nil
}

func (c *MemorySetCache) Remove(_ context.Context, kind models.ListKind, uid, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.get(kind, uid).ids, id)
	return nil
}

func (c *MemorySetCache) Members(_ context.Context, kind models.ListKind, uid string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.get(kind, uid)
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (c *MemorySetCache) Contains(_ context.Context, kind models.ListKind, uid, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.get(kind, uid).ids[id]
	return ok, nil
}

func (c *MemorySetCache) Invalidate(_ context.Context, kind models.ListKind, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, SetKey(kind, uid))
	return nil
}

// RedisSetCache keeps id sets in Redis so several API instances share them.
// The hydrated marker expires after ttl, forcing a reload from the store.
type RedisSetCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSetCache returns a Redis-backed cache. ttl <= 0 keeps sets forever.
func NewRedisSetCache(client *redis.Client, ttl time.Duration) *RedisSetCache {
	return &RedisSetCache{client: client, ttl: ttl}
}

func (c *RedisSetCache) Hydrated(ctx context.Context, kind models.ListKind, uid string) (bool, error) {
	n, err := c.client.Exists(ctx, HydratedKey(kind, uid)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *RedisSetCache) Replace(ctx context.Context, kind models.ListKind, uid string, ids []string) error {
	key := SetKey(kind, uid)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(ids) > 0 {
			members := make([]interface{}, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			pipe.SAdd(ctx, key, members...)
			c.expire(ctx, pipe, key)
		}
		pipe.Set(ctx, HydratedKey(kind, uid), "1", c.ttl)
		return nil
	})
	return err
}

func (c *RedisSetCache) Add(ctx context.Context, kind models.ListKind, uid, id string) error {
	key := SetKey(kind, uid)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, id)
		c.expire(ctx, pipe, key)
		return nil
	})
	return err
}

func (c *RedisSetCache) Remove(ctx context.Context, kind models.ListKind, uid, id string) error {
	return c.client.SRem(ctx, SetKey(kind, uid), id).Err()
}

func (c *RedisSetCache) Members(ctx context.Context, kind models.ListKind, uid string) ([]string, error) {
	ids, err := c.client.SMembers(ctx, SetKey(kind, uid)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *RedisSetCache) Contains(ctx context.Context, kind models.ListKind, uid, id string) (bool, error) {
	return c.client.SIsMember(ctx, SetKey(kind, uid), id).Result()
}

func (c *RedisSetCache) Invalidate(ctx context.Context, kind models.ListKind, uid string) error {
	return c.client.Del(ctx, SetKey(kind, uid), HydratedKey(kind, uid)).Err()
}

// expire keeps the set slightly longer than its marker so a live marker
// never points at an evicted set.
func (c *RedisSetCache) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl+time.Minute)
	}
}
