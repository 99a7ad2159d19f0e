package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hanna-chat-go/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteBlobStore 是 hannactl 默认使用的本地 BlobStore。
type SQLiteBlobStore struct {
	db *sql.DB
}

// NewSQLiteBlobStore 打开（必要时创建）dbPath 处的 SQLite 数据库。
func NewSQLiteBlobStore(dbPath string) (*SQLiteBlobStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// 单进程 CLI，一个连接即可，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS blobs (
		blob_key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBlobStore{db: db}, nil
}

// Save 以 upsert 方式写入。
func (s *SQLiteBlobStore) Save(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO blobs (blob_key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(blob_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save blob: %w", err)
	}
	return nil
}

// Load 按 key 读取，不存在时返回 store.ErrBlobNotFound。
func (s *SQLiteBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE blob_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob: %w", err)
	}
	return value, nil
}

// Close 关闭数据库连接。
func (s *SQLiteBlobStore) Close() error {
	return s.db.Close()
}
