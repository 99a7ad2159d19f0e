// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/service"
	"hanna-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 固定的错误响应文本。
const (
	MissingAPIKeyMessage  = "OpenAI API key not configured. Set OPENAI_API_KEY in your environment variables."
	GenerateFailedError   = "Failed to generate response"
	GenerateFailedMessage = "I encountered an error while processing your request. Please try again."
	InvalidBodyMessage    = "invalid request body"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责 /api/chat 的 HTTP 与 WebSocket 入口。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理 POST /api/chat。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: InvalidBodyMessage})
		return
	}
	log.Infow("POST /api/chat", "count", len(req.Messages), "kind", req.Kind, "mode", req.Mode)

	switch {
	case model.IsCodeKind(req.Kind):
		h.codeAssist(c, req)
	case req.Stream:
		h.stream(c, req)
	default:
		text, err := h.chatService.Reply(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.ChatResponse{Content: text})
	}
}

func (h *ChatHandler) codeAssist(c *gin.Context, req model.ChatRequest) {
	reply, err := h.chatService.CodeAssist(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if reply.Result.Failed() {
		c.JSON(http.StatusOK, reply.Result)
		return
	}
	// 解析成功时原样透传模型输出，缺失的字段保持缺失
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(reply.Raw))
}

func (h *ChatHandler) stream(c *gin.Context, req model.ChatRequest) {
	w := &httpStreamWriter{c: c}
	err := h.chatService.Stream(c.Request.Context(), req, w)
	if err == nil {
		if !w.started {
			// 没有任何增量时也要给出一个合法的空流
			w.start()
		}
		return
	}
	if !w.started {
		writeError(c, err)
		return
	}
	// 响应头已发出，只能记录日志并结束流
	log.Errorf("流式响应中断: %v", err)
}

// httpStreamWriter 把 LLM 增量作为原始文本写入 text/event-stream 响应，每块都 flush。
type httpStreamWriter struct {
	c       *gin.Context
	started bool
}

func (w *httpStreamWriter) start() {
	w.started = true
	w.c.Header("Content-Type", "text/event-stream; charset=utf-8")
	w.c.Header("Cache-Control", "no-cache")
	w.c.Header("X-Accel-Buffering", "no")
	w.c.Status(http.StatusOK)
	w.c.Writer.WriteHeaderNow()
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *httpStreamWriter) WriteMessage(_ int, data []byte) error {
	if !w.started {
		w.start()
	}
	if _, err := w.c.Writer.Write(data); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// HandleWS 处理 GET /api/chat/ws：每个文本帧是一个 ChatRequest，
// 回复为若干 {"chunk":...} 帧加一个 completion 帧。
func (h *ChatHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Info("WebSocket 连接已建立")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		var req model.ChatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			sendJSON(conn, gin.H{"error": InvalidBodyMessage})
			continue
		}

		if model.IsCodeKind(req.Kind) {
			reply, err := h.chatService.CodeAssist(c.Request.Context(), req)
			if err != nil {
				sendJSON(conn, gin.H{"error": errorMessage(err)})
			} else {
				sendJSON(conn, gin.H{"result": reply.Result})
			}
			sendCompletion(conn)
			continue
		}

		if err := h.chatService.Stream(c.Request.Context(), req, &wsChunkWriter{conn: conn}); err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			sendJSON(conn, gin.H{"error": errorMessage(err)})
		}
		sendCompletion(conn)
	}
}

// wsChunkWriter 把原始分块包装成 {"chunk":"..."}。
type wsChunkWriter struct {
	conn *websocket.Conn
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsChunkWriter) WriteMessage(messageType int, data []byte) error {
	b, _ := json.Marshal(map[string]string{"chunk": string(data)})
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(conn *websocket.Conn) {
	sendJSON(conn, map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	})
}

func sendJSON(conn *websocket.Conn, v interface{}) {
	b, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrMissingAPIKey):
		return MissingAPIKeyMessage
	case errors.Is(err, service.ErrCodeRequired):
		return service.ErrCodeRequired.Error()
	default:
		return GenerateFailedMessage
	}
}

// writeError 把 service 错误映射为 HTTP 响应。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingAPIKey):
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: MissingAPIKeyMessage})
	case errors.Is(err, service.ErrCodeRequired):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: service.ErrCodeRequired.Error()})
	default:
		log.Error("Chat API error", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   GenerateFailedError,
			Message: GenerateFailedMessage,
		})
	}
}
