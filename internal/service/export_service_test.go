package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hanna-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	object string
	body   []byte
	err    error
}

func (u *fakeUploader) PutTranscript(_ context.Context, objectName string, markdown []byte) (string, error) {
	u.object, u.body = objectName, markdown
	if u.err != nil {
		return "", u.err
	}
	return "https://minio.local/" + objectName, nil
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

var exportMessages = []model.WireMessage{
	{Role: "user", Content: "hello"},
	{Role: "assistant", Content: "world"},
}

func TestExportWithoutUploader(t *testing.T) {
	svc := &exportService{now: fixedNow}
	res, err := svc.Export(context.Background(), exportMessages)
	require.NoError(t, err)
	assert.Empty(t, res.URL)
	assert.Equal(t, "hannabot-2026-03-04-05-06-07.md", res.Object)
	assert.Contains(t, res.Markdown, "hello")
	assert.Contains(t, res.Markdown, "world")
}

func TestExportUploads(t *testing.T) {
	up := &fakeUploader{}
	svc := &exportService{uploader: up, now: fixedNow}
	res, err := svc.Export(context.Background(), exportMessages)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/hannabot-2026-03-04-05-06-07.md", res.URL)
	assert.Equal(t, res.Object, up.object)
	assert.Equal(t, res.Markdown, string(up.body))
}

func TestExportUploadFailureKeepsMarkdown(t *testing.T) {
	up := &fakeUploader{err: errors.New("bucket missing")}
	svc := &exportService{uploader: up, now: fixedNow}
	res, err := svc.Export(context.Background(), exportMessages)
	require.Error(t, err)
	assert.NotEmpty(t, res.Markdown)
	assert.Empty(t, res.URL)
}
