// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"time"

	"hanna-chat-go/internal/store"

	"github.com/go-redis/redis/v8"
)

const redisBlobPrefix = "hanna:blob:"

type redisBlobStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisBlobStore 创建一个基于 Redis 的 BlobStore。ttl 为 0 表示永不过期。
func NewRedisBlobStore(redisClient *redis.Client, ttl time.Duration) store.BlobStore {
	return &redisBlobStore{redisClient: redisClient, ttl: ttl}
}

// Save 将整段 JSON 写入 hanna:blob:{key}。
func (r *redisBlobStore) Save(ctx context.Context, key string, value []byte) error {
	if err := r.redisClient.Set(ctx, redisBlobPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set blob: %w", err)
	}
	return nil
}

// Load 读取 hanna:blob:{key}，不存在时返回 store.ErrBlobNotFound。
func (r *redisBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redisClient.Get(ctx, redisBlobPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, store.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return data, nil
}
