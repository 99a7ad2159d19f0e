package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hanna-chat-go/internal/config"
	"hanna-chat-go/internal/store"
	"hanna-chat-go/pkg/database"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// DefaultDataDir 返回 ~/.hanna，取不到 home 目录时退回当前目录。
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hanna"
	}
	return filepath.Join(home, ".hanna")
}

// NewBlobStore 根据配置选择 BlobStore 驱动，返回的 io.Closer 用于释放底层连接。
func NewBlobStore(ctx context.Context, cfg config.PersistenceConfig) (store.BlobStore, io.Closer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(DefaultDataDir(), "hanna.db")
		}
		s, err := NewSQLiteBlobStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case "file":
		dir := cfg.Path
		if dir == "" {
			dir = filepath.Join(DefaultDataDir(), "blobs")
		}
		s, err := NewFileBlobStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser, nil

	case "redis":
		client, err := database.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		ttl := time.Duration(cfg.TTLHours) * time.Hour
		return NewRedisBlobStore(client, ttl), client, nil

	case "mysql":
		db, err := database.OpenMySQL(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewGormBlobStore(db)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		return s, sqlDB, nil

	case "memory":
		return NewMemoryBlobStore(), nopCloser, nil
	}
	return nil, nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
}
