// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hanna-chat-go/internal/codeassist"
	"hanna-chat-go/internal/config"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/prompt"
	"hanna-chat-go/pkg/llm"
	"hanna-chat-go/pkg/log"
)

var (
	// ErrMissingAPIKey 表示没有配置模型 API 凭证。
	ErrMissingAPIKey = errors.New("llm api key not configured")
	// ErrCodeRequired 表示代码助手请求缺少代码。
	ErrCodeRequired = errors.New("code required")
)

// ExchangeRecorder 接收每次交换完成后的事件，实现方不得阻塞。
type ExchangeRecorder interface {
	Record(ctx context.Context, event model.ExchangeEvent)
}

// CodeAssistReply 是代码助手模式的结果。
// 解析成功时 Raw 是模型输出原文，应原样返回；失败时 Result 是兜底结果。
type CodeAssistReply struct {
	Raw    string
	Result model.CodeAssistantResult
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Reply 处理普通聊天与 quiz 请求，返回完整回复。
	Reply(ctx context.Context, req model.ChatRequest) (string, error)
	// Stream 与 Reply 相同，但把增量写入 writer。
	Stream(ctx context.Context, req model.ChatRequest, writer llm.MessageWriter) error
	// CodeAssist 处理 code-review / code-improve / tests 请求。
	CodeAssist(ctx context.Context, req model.ChatRequest) (CodeAssistReply, error)
}

type chatService struct {
	cfg       config.LLMConfig
	llmClient llm.Client
	recorder  ExchangeRecorder
}

// NewChatService 创建一个新的 ChatService 实例。recorder 可以为 nil。
func NewChatService(cfg config.LLMConfig, llmClient llm.Client, recorder ExchangeRecorder) ChatService {
	return &chatService{
		cfg:       cfg,
		llmClient: llmClient,
		recorder:  recorder,
	}
}

func (s *chatService) checkCredential() error {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (s *chatService) Reply(ctx context.Context, req model.ChatRequest) (string, error) {
	if err := s.checkCredential(); err != nil {
		return "", err
	}
	start := time.Now()
	msgs := prompt.ChatMessages(modeOrDefault(req.Mode), req.Kind, req.Messages)

	text, err := s.llmClient.Generate(ctx, msgs, llm.ParamsFrom(s.cfg.Generation))
	s.record(ctx, req, len(req.Messages), start, err)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return text, nil
}

func (s *chatService) Stream(ctx context.Context, req model.ChatRequest, writer llm.MessageWriter) error {
	if err := s.checkCredential(); err != nil {
		return err
	}
	start := time.Now()
	msgs := prompt.ChatMessages(modeOrDefault(req.Mode), req.Kind, req.Messages)

	err := s.llmClient.StreamChatMessages(ctx, msgs, llm.ParamsFrom(s.cfg.Generation), writer)
	s.record(ctx, req, len(req.Messages), start, err)
	if err != nil {
		return fmt.Errorf("failed to stream response: %w", err)
	}
	return nil
}

func (s *chatService) CodeAssist(ctx context.Context, req model.ChatRequest) (CodeAssistReply, error) {
	if err := s.checkCredential(); err != nil {
		return CodeAssistReply{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return CodeAssistReply{}, ErrCodeRequired
	}
	level := ""
	if req.Preferences != nil {
		level = req.Preferences.ExperienceLevel
	}

	start := time.Now()
	msgs := prompt.Compile(prompt.Input{
		Kind:            model.CodeKind(req.Kind),
		Code:            req.Code,
		Language:        req.Language,
		ExperienceLevel: level,
	})
	gen := llm.ParamsFrom(s.cfg.CodeGeneration)
	gen.JSONObject = true

	raw, err := s.llmClient.Generate(ctx, msgs, gen)
	s.record(ctx, req, 0, start, err)
	if err != nil {
		return CodeAssistReply{}, fmt.Errorf("failed to generate code assistance: %w", err)
	}

	result := codeassist.Parse(raw)
	if result.Failed() {
		log.Warnf("模型输出不是合法 JSON, kind=%s, len=%d", req.Kind, len(raw))
	} else if problems := codeassist.Conformance(raw); len(problems) > 0 {
		log.Warnw("模型输出不完全符合 schema", "kind", req.Kind, "problems", problems)
	}
	return CodeAssistReply{Raw: raw, Result: result}, nil
}

func (s *chatService) record(ctx context.Context, req model.ChatRequest, count int, start time.Time, err error) {
	if s.recorder == nil {
		return
	}
	status := model.ExchangeStatusOK
	if err != nil {
		status = model.ExchangeStatusError
	}
	s.recorder.Record(ctx, model.ExchangeEvent{
		Kind:         req.Kind,
		Mode:         req.Mode,
		MessageCount: count,
		Status:       status,
		LatencyMs:    time.Since(start).Milliseconds(),
		At:           time.Now().UTC(),
	})
}

func modeOrDefault(mode string) string {
	if mode == "" {
		return "Beginner"
	}
	return mode
}
