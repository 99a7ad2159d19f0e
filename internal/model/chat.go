package model

// WireMessage 是发送给后端的 role/content 对。
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Preferences 是代码助手模式的偏好设置。
type Preferences struct {
	ExperienceLevel string `json:"experienceLevel,omitempty"`
}

// ChatRequest 是 POST /api/chat 的请求体。
type ChatRequest struct {
	Messages    []WireMessage `json:"messages,omitempty"`
	Mode        string        `json:"mode,omitempty"`
	Kind        string        `json:"kind,omitempty"`
	Code        string        `json:"code,omitempty"`
	Language    string        `json:"language,omitempty"`
	Preferences *Preferences  `json:"preferences,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatResponse 是普通聊天 / quiz 模式的响应体。
type ChatResponse struct {
	Content string `json:"content"`
}

// ErrorResponse 是非 2xx 响应体。
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// KindQuiz 标记一次 quiz 交换。
const KindQuiz = "quiz"

// ToWire 只保留 role/content 两个字段。
func ToWire(messages []Message) []WireMessage {
	out := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, WireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
