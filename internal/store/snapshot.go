package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore 基于 go-redis 的 KV 实现
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// SnapshotStore 物业状态快照缓存（无 TTL，始终保存最新一份）
type SnapshotStore struct {
	kv  KVStore
	key string
}

// NewSnapshotStore 创建快照缓存
func NewSnapshotStore(kv KVStore, key string) *SnapshotStore {
	return &SnapshotStore{kv: kv, key: key}
}

// Save 保存快照
func (s *SnapshotStore) Save(ctx context.Context, payload []byte) error {
	if err := s.kv.Set(ctx, s.key, string(payload), 0); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", s.key, err)
	}
	return nil
}

// Load 读取快照，不存在时返回 ErrCacheMiss
func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	val, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load snapshot %s: %w", s.key, err)
	}
	return []byte(val), nil
}
