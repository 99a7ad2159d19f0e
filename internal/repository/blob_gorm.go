package repository

import (
	"context"
	"errors"
	"fmt"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormBlobStore struct {
	db *gorm.DB
}

// NewGormBlobStore 创建一个基于 GORM（MySQL）的 BlobStore，并自动迁移 blobs 表。
func NewGormBlobStore(db *gorm.DB) (store.BlobStore, error) {
	if err := db.AutoMigrate(&model.Blob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate blobs table: %w", err)
	}
	return &gormBlobStore{db: db}, nil
}

// Save 以 upsert 方式写入。
func (r *gormBlobStore) Save(ctx context.Context, key string, value []byte) error {
	blob := model.Blob{Key: key, Value: string(value)}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("failed to save blob: %w", err)
	}
	return nil
}

// Load 按 key 读取。
func (r *gormBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob model.Blob
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load blob: %w", err)
	}
	return []byte(blob.Value), nil
}
