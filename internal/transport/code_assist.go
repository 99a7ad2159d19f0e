package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"hanna-chat-go/internal/codeassist"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/prompt"
)

// ErrKindRequired 表示代码助手请求缺少 kind。
var ErrKindRequired = errors.New("kind required")

// CodeRequest 是一次代码助手请求。
type CodeRequest struct {
	Kind            model.CodeKind
	Code            string
	Language        string
	ExperienceLevel string
}

// HTTPError 是后端返回的非 2xx 响应。
type HTTPError struct {
	Status int
	// Message 形如 "HTTP 500: <error>"
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

const errorBodyPreview = 120

// CodeAssist 请求代码助手模式，结果经 codeassist.Parse 校验。
// 与聊天交换不同，它不写消息存储，失败以 error 返回。
func (c *Client) CodeAssist(ctx context.Context, in CodeRequest) (model.CodeAssistantResult, error) {
	if in.Kind == "" {
		return model.CodeAssistantResult{}, ErrKindRequired
	}
	body := model.ChatRequest{
		Kind:        string(in.Kind),
		Code:        in.Code,
		Language:    in.Language,
		Preferences: &model.Preferences{ExperienceLevel: in.ExperienceLevel},
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return model.CodeAssistantResult{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.CodeAssistantResult{}, fmt.Errorf("network error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.CodeAssistantResult{}, httpError(resp.StatusCode, text)
	}
	return codeassist.Parse(string(text)), nil
}

func httpError(status int, body []byte) *HTTPError {
	msg := fmt.Sprintf("HTTP %d", status)
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			msg += ": " + payload.Error
		}
	} else if len(body) > 0 {
		preview, _ := prompt.Truncate(string(body), errorBodyPreview)
		msg += ": " + preview
	}
	return &HTTPError{Status: status, Message: msg}
}
