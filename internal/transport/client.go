// Package transport 实现一次逻辑交换（send / regenerate / quiz）：构造请求，
// 经 decoder 判别响应形态，再把增量或最终文本写回 Message Store。
//
// 网络失败与非 2xx 状态都不会作为错误返回给调用方，而是变成占位消息的
// 可见内容。唯一返回的错误是 ErrExchangeInFlight。
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"hanna-chat-go/internal/decoder"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/store"
	"hanna-chat-go/pkg/log"

	"github.com/google/uuid"
)

// ErrExchangeInFlight 表示该客户端已有一次交换在进行中。
var ErrExchangeInFlight = errors.New("an exchange is already in flight")

// 用户可见的固定文本。
const (
	ReceivedResponse = "Received response."
	SendFailure      = "Network error. Please try again."
	RegenFailure     = "Regeneration failed. Please try again."
	QuizFailure      = "Failed to generate quiz. Please try again."
	QuizRequest      = "Please quiz me on this topic."
)

// QuizContextSize 是 quiz 请求携带的最近消息条数。
const QuizContextSize = 6

// Exchange 描述一次已完成的交换。
type Exchange struct {
	// MessageID 是被写入的助手消息 id；no-op 时为空。
	MessageID string
	Content   string
	Shape     decoder.ShapeKind
	// Failed 为 true 表示内容是网络失败或 HTTP 错误的提示文本。
	Failed bool
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换默认的 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLevel 设置默认的经验等级（请求体中的 mode）。
func WithLevel(level string) Option {
	return func(c *Client) { c.level.Store(level) }
}

// Client 针对单个会话发起交换。同一时刻只允许一次交换。
type Client struct {
	endpoint string
	http     *http.Client
	store    *store.Store

	// 可在交换进行中被 SetLevel 修改
	level atomic.Value
	busy  atomic.Bool
}

// New 创建客户端。endpoint 是后端 /api/chat 的完整地址。
func New(endpoint string, st *store.Store, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		store:    st,
	}
	c.level.Store("Beginner")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Level 返回默认经验等级。
func (c *Client) Level() string { return c.level.Load().(string) }

// SetLevel 修改默认经验等级。
func (c *Client) SetLevel(level string) { c.level.Store(level) }

// Store 返回客户端操作的消息存储。
func (c *Client) Store() *store.Store { return c.store }

func (c *Client) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrExchangeInFlight
	}
	return nil
}

func (c *Client) release() { c.busy.Store(false) }

func (c *Client) levelOr(level string) string {
	if level == "" {
		return c.Level()
	}
	return level
}

// Send 追加用户消息与空的助手占位消息，然后请求后端。空白文本是 no-op。
func (c *Client) Send(ctx context.Context, text, level string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, nil
	}
	if err := c.acquire(); err != nil {
		return Exchange{}, err
	}
	defer c.release()

	// 用户消息必须在任何网络活动之前写入
	c.store.Append(model.Message{Role: model.RoleUser, Content: text})
	history := c.store.All()

	placeholder := uuid.NewString()
	c.store.UpsertContent(placeholder, "")

	req := model.ChatRequest{Mode: c.levelOr(level), Messages: model.ToWire(history)}
	return c.exchange(ctx, req, placeholder, SendFailure), nil
}

// Regenerate 重新生成最后一条助手消息。
// 只重放到（含）其前最近一条用户消息为止的记录；之后的消息不参与请求，但保留在存储中。
// 找不到 (user, assistant) 对时为 no-op。
func (c *Client) Regenerate(ctx context.Context, level string) (Exchange, error) {
	if err := c.acquire(); err != nil {
		return Exchange{}, err
	}
	defer c.release()

	msgs := c.store.All()
	assistantIdx, userIdx := regenerateTarget(msgs)
	if assistantIdx < 0 || userIdx < 0 {
		return Exchange{}, nil
	}

	target := msgs[assistantIdx].ID
	c.store.UpsertContent(target, "")

	req := model.ChatRequest{Mode: c.levelOr(level), Messages: model.ToWire(msgs[:userIdx+1])}
	return c.exchange(ctx, req, target, RegenFailure), nil
}

// regenerateTarget 返回最后一条助手消息及其前最近一条用户消息的下标，缺失为 -1。
func regenerateTarget(msgs []model.Message) (assistantIdx, userIdx int) {
	assistantIdx, userIdx = -1, -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			assistantIdx = i
			break
		}
	}
	for i := assistantIdx - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			userIdx = i
			break
		}
	}
	return assistantIdx, userIdx
}

// Quiz 以最近六条记录为上下文请求一份测验。
func (c *Client) Quiz(ctx context.Context, level string) (Exchange, error) {
	if err := c.acquire(); err != nil {
		return Exchange{}, err
	}
	defer c.release()

	msgs := c.store.All()
	if len(msgs) > QuizContextSize {
		msgs = msgs[len(msgs)-QuizContextSize:]
	}

	c.store.Append(model.Message{Role: model.RoleUser, Content: QuizRequest})
	placeholder := uuid.NewString()
	c.store.UpsertContent(placeholder, "")

	req := model.ChatRequest{Mode: c.levelOr(level), Kind: model.KindQuiz, Messages: model.ToWire(msgs)}
	return c.exchange(ctx, req, placeholder, QuizFailure), nil
}

// exchange 执行请求并把结果写入 id 对应的消息。它总会给占位消息一个终态内容。
func (c *Client) exchange(ctx context.Context, body model.ChatRequest, id, failure string) Exchange {
	start := time.Now()
	result := c.roundTrip(ctx, body, id, failure)
	c.store.UpsertContent(id, result.Content)

	log.Infow("交换完成",
		"kind", body.Kind,
		"mode", body.Mode,
		"messages", len(body.Messages),
		"shape", result.Shape.String(),
		"failed", result.Failed,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result
}

func (c *Client) roundTrip(ctx context.Context, body model.ChatRequest, id, failure string) Exchange {
	ex := Exchange{MessageID: id}

	resp, err := c.post(ctx, body)
	if err != nil {
		log.Warnf("请求后端失败: %v", err)
		ex.Content, ex.Failed = failure, true
		return ex
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(resp.Body)
		ex.Content, ex.Failed = string(text), true
		if ex.Content == "" {
			ex.Content = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		}
		return ex
	}

	outcome := decoder.Decode(resp)
	ex.Shape = outcome.Shape()
	switch o := outcome.(type) {
	case decoder.Streamed:
		ex.Content, ex.Failed = c.drain(o.Stream, id, failure)
	case decoder.Structured:
		ex.Content = textField(o.Value)
	case decoder.PlainText:
		if o.Err != nil && !errors.Is(o.Err, decoder.ErrMalformedJSON) {
			// body 读取中断，按网络失败处理
			log.Warnf("读取响应失败: %v", o.Err)
			ex.Content, ex.Failed = failure, true
			return ex
		}
		ex.Content = o.Text
	}
	if ex.Content == "" {
		ex.Content = ReceivedResponse
	}
	return ex
}

func (c *Client) post(ctx context.Context, body model.ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// drain 按到达顺序消费增量，每个增量都把累计文本写回存储。
// 中途失败时保留已收到的文本，并在新的一行追加失败提示。
func (c *Client) drain(stream *decoder.DeltaStream, id, failure string) (string, bool) {
	if err := stream.Claim(); err != nil {
		return failure, true
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return acc.String(), false
		}
		if err != nil {
			log.Warnf("流式响应中断: %v", err)
			if acc.Len() == 0 {
				return failure, true
			}
			return acc.String() + "\n" + failure, true
		}
		acc.WriteString(delta)
		c.store.UpsertContent(id, acc.String())
	}
}

// textField 依次尝试 content、reply、message.content。
func textField(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if s := model.ToText(obj["content"]); s != "" {
		return s
	}
	if s := model.ToText(obj["reply"]); s != "" {
		return s
	}
	if nested, ok := obj["message"].(map[string]any); ok {
		return model.ToText(nested["content"])
	}
	return ""
}
