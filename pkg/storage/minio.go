// Package storage 提供了与对象存储服务（如 MinIO）交互的功能，用于保存导出的会话记录。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"hanna-chat-go/internal/config"
	"hanna-chat-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// TranscriptStore 把 Markdown 记录上传到存储桶并生成预签名下载链接。
type TranscriptStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewTranscriptStore 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewTranscriptStore(ctx context.Context, cfg config.MinIOConfig) (*TranscriptStore, error) {
	// 1. 初始化 MinIO 客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}

	expiry := time.Duration(cfg.PresignExpiryMinute) * time.Minute
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &TranscriptStore{client: client, bucket: cfg.BucketName, expiry: expiry}, nil
}

// PutTranscript 上传一份 Markdown 记录，返回预签名 URL。
func (s *TranscriptStore) PutTranscript(ctx context.Context, objectName string, markdown []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(markdown), int64(len(markdown)),
		minio.PutObjectOptions{ContentType: "text/markdown; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传记录失败: %w", err)
	}
	return s.GetPresignedURL(ctx, objectName)
}

// GetPresignedURL generates a presigned URL for a given object.
func (s *TranscriptStore) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
