// Package model 包含了应用的数据模型定义。
package model

import "time"

// Role 是对话消息的角色。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SeedMessageID 是欢迎消息的固定 ID，清空会话后总会回到这一条。
const SeedMessageID = "1"

// SeedGreeting 是欢迎消息的内容。
const SeedGreeting = "Hello! I'm your AI assistant. How can I help you today?"

// Message 代表会话中的一条消息。ID 在会话内唯一，原地更新 Content 时保持不变。
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// SeedMessage 返回默认的欢迎消息。
func SeedMessage() Message {
	return Message{
		ID:        SeedMessageID,
		Role:      RoleAssistant,
		Content:   SeedGreeting,
		CreatedAt: Now(),
	}
}

// Now 返回毫秒精度的 UTC 时间，保证持久化前后字段完全一致。
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NormalizeRole 将任意上游角色收敛为 user / assistant。
func NormalizeRole(role string) Role {
	if role == string(RoleUser) {
		return RoleUser
	}
	return RoleAssistant
}

// ToText 将任意上游值强制转换为字符串：非字符串一律视为空串。
func ToText(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
