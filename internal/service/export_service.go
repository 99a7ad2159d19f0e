package service

import (
	"context"
	"fmt"
	"time"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/transcript"
)

// TranscriptUploader 把导出的记录保存到对象存储，返回可下载的 URL。
type TranscriptUploader interface {
	PutTranscript(ctx context.Context, objectName string, markdown []byte) (string, error)
}

// ExportResult 是一次导出的结果。URL 为空表示未上传，调用方应直接返回 Markdown。
type ExportResult struct {
	Markdown string
	Object   string
	URL      string
}

// ExportService 负责把会话渲染为 Markdown 并（可选地）上传。
type ExportService interface {
	Export(ctx context.Context, messages []model.WireMessage) (ExportResult, error)
}

type exportService struct {
	uploader TranscriptUploader
	now      func() time.Time
}

// NewExportService 创建 ExportService，uploader 可以为 nil。
func NewExportService(uploader TranscriptUploader) ExportService {
	return &exportService{uploader: uploader, now: time.Now}
}

func (s *exportService) Export(ctx context.Context, messages []model.WireMessage) (ExportResult, error) {
	md := transcript.MarkdownFromWire(messages)
	res := ExportResult{Markdown: md, Object: transcript.FileName(s.now())}
	if s.uploader == nil {
		return res, nil
	}
	url, err := s.uploader.PutTranscript(ctx, res.Object, []byte(md))
	if err != nil {
		return res, fmt.Errorf("failed to upload transcript: %w", err)
	}
	res.URL = url
	return res, nil
}
