// Package cache 缓存已求解的运行结果，键为模型指纹
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/planner"
)

const keyPrefix = "healthloc:run:"

// store go-redis 客户端中用到的部分
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis 基于 Redis 的结果缓存
type Redis struct {
	rdb store
	ttl time.Duration
}

// Options Redis 连接参数
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// NewRedis 连接 Redis 并检查连通性
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	c := &Redis{rdb: rdb, ttl: opts.TTL}
	if err := c.Ping(ctx); err != nil {
		rdb.Close()
		return nil, err
	}
	return c, nil
}

// Ping 检查连通性
func (c *Redis) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "Redis 不可用")
	}
	return nil
}

// Get 读取缓存，未命中返回 false
func (c *Redis) Get(ctx context.Context, key string) (*planner.Run, bool, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeCacheError, "读取缓存失败")
	}
	var run planner.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeCacheError, "缓存内容损坏")
	}
	return &run, true, nil
}

// Set 写入缓存
func (c *Redis) Set(ctx context.Context, key string, run *planner.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "序列化运行结果失败")
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "写入缓存失败")
	}
	return nil
}

// DefaultMemoryEntries 进程内缓存的默认条目上限
const DefaultMemoryEntries = 1000

// Memory 进程内缓存，未配置 Redis 时使用
//
// 写入时清理过期条目；超过上限时淘汰最早写入的条目。
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	limit   int
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	added   time.Time
	expires time.Time
}

// NewMemory 创建进程内缓存，ttl 为 0 表示不过期
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		limit:   DefaultMemoryEntries,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get 读取缓存，返回副本
func (m *Memory) Get(_ context.Context, key string) (*planner.Run, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	var run planner.Run
	if err := json.Unmarshal(e.data, &run); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeCacheError, "缓存内容损坏")
	}
	return &run, true, nil
}

// Set 写入缓存
func (m *Memory) Set(_ context.Context, key string, run *planner.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "序列化运行结果失败")
	}
	now := m.now()
	e := memoryEntry{data: data, added: now}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, old := range m.entries {
		if !old.expires.IsZero() && now.After(old.expires) {
			delete(m.entries, k)
		}
	}
	if _, ok := m.entries[key]; !ok {
		for m.limit > 0 && len(m.entries) >= m.limit {
			m.evictOldest()
		}
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) evictOldest() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for k, e := range m.entries {
		if !found || e.added.Before(at) {
			oldest, at, found = k, e.added, true
		}
	}
	delete(m.entries, oldest)
}

// Len 返回条目数
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
