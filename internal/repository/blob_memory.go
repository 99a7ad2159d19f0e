package repository

import (
	"context"
	"sync"

	"hanna-chat-go/internal/store"
)

// MemoryBlobStore 只存在于进程内，用于测试和 --ephemeral 会话。
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	saves int
}

// NewMemoryBlobStore 创建一个空的 MemoryBlobStore。
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Save 保存一份拷贝。
func (m *MemoryBlobStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	m.saves++
	return nil
}

// Load 返回一份拷贝。
func (m *MemoryBlobStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	if !ok {
		return nil, store.ErrBlobNotFound
	}
	return append([]byte(nil), v...), nil
}

// Saves 返回累计保存次数。
func (m *MemoryBlobStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
