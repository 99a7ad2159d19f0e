package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hanna-chat-go/internal/config"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/store"
	"hanna-chat-go/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBlobStore 是所有驱动共用的行为检查。
func exerciseBlobStore(t *testing.T, blob store.BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := blob.Load(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrBlobNotFound)

	require.NoError(t, blob.Save(ctx, "chatbot-messages", []byte(`[{"id":"1"}]`)))
	got, err := blob.Load(ctx, "chatbot-messages")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(got))

	// 覆盖写
	require.NoError(t, blob.Save(ctx, "chatbot-messages", []byte(`[]`)))
	got, err = blob.Load(ctx, "chatbot-messages")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	// key 之间互不影响
	require.NoError(t, blob.Save(ctx, "code-assistant-state", []byte(`{}`)))
	got, err = blob.Load(ctx, "chatbot-messages")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

// exerciseStoreRoundTrip 通过 Message Store 验证持久化往返。
func exerciseStoreRoundTrip(t *testing.T, blob store.BlobStore) {
	t.Helper()
	s := store.New(blob, "round-trip")
	s.Append(model.Message{Role: model.RoleUser, Content: "hello"})
	s.UpsertContent("reply-1", "wörld 🌍")
	require.NoError(t, s.LastPersistError())

	restored := store.New(blob, "round-trip")
	assert.Equal(t, s.All(), restored.All())
}

func TestMemoryBlobStore(t *testing.T) {
	blob := NewMemoryBlobStore()
	exerciseBlobStore(t, blob)
	exerciseStoreRoundTrip(t, blob)
	assert.Greater(t, blob.Saves(), 3)
}

func TestFileBlobStore(t *testing.T) {
	dir := t.TempDir()
	blob, err := NewFileBlobStore(filepath.Join(dir, "nested", "blobs"))
	require.NoError(t, err)
	exerciseBlobStore(t, blob)
	exerciseStoreRoundTrip(t, blob)

	// 不安全的 key 字符被替换，不会逃出目录
	require.NoError(t, blob.Save(context.Background(), "../escape/key", []byte("x")))
	entries, err := os.ReadDir(filepath.Join(dir, "nested", "blobs"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "/")
	}
	_, err = os.Stat(filepath.Join(dir, "nested", "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileBlobStoreHonorsCanceledContext(t *testing.T) {
	blob, err := NewFileBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, blob.Save(ctx, "k", []byte("v")))
}

func TestSQLiteBlobStore(t *testing.T) {
	blob, err := NewSQLiteBlobStore(filepath.Join(t.TempDir(), "sub", "hanna.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blob.Close() })

	exerciseBlobStore(t, blob)
	exerciseStoreRoundTrip(t, blob)
}

func TestSQLiteBlobStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hanna.db")
	blob, err := NewSQLiteBlobStore(path)
	require.NoError(t, err)
	require.NoError(t, blob.Save(context.Background(), "k", []byte("v1")))
	require.NoError(t, blob.Close())

	reopened, err := NewSQLiteBlobStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestNewBlobStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, cfg := range []config.PersistenceConfig{
		{Driver: "memory"},
		{Driver: "file", Path: filepath.Join(dir, "files")},
		{Driver: "sqlite", Path: filepath.Join(dir, "db", "hanna.db")},
		{Driver: "SQLite", Path: filepath.Join(dir, "db2", "hanna.db")},
	} {
		blob, closer, err := NewBlobStore(ctx, cfg)
		require.NoError(t, err, cfg.Driver)
		exerciseBlobStore(t, blob)
		assert.NoError(t, closer.Close())
	}

	_, _, err := NewBlobStore(ctx, config.PersistenceConfig{Driver: "floppy"})
	assert.Error(t, err)
}

// 以下驱动需要外部服务，设置环境变量后才运行。

func TestRedisBlobStore(t *testing.T) {
	addr := os.Getenv("HANNA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HANNA_TEST_REDIS_ADDR not set")
	}
	client, err := database.OpenRedis(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	blob := NewRedisBlobStore(client, time.Hour)
	exerciseBlobStore(t, blob)
	exerciseStoreRoundTrip(t, blob)
}

func TestGormBlobStore(t *testing.T) {
	dsn := os.Getenv("HANNA_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("HANNA_TEST_MYSQL_DSN not set")
	}
	db, err := database.OpenMySQL(dsn)
	require.NoError(t, err)

	blob, err := NewGormBlobStore(db)
	require.NoError(t, err)
	exerciseBlobStore(t, blob)
	exerciseStoreRoundTrip(t, blob)
}
