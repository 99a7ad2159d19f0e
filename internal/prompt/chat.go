package prompt

import (
	"strings"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/pkg/llm"
)

// QuizInstruction 追加在 quiz 请求末尾。
const QuizInstruction = "Create a short quiz (5 multiple-choice questions) about the topic above. " +
	"Output in Markdown with a numbered list, each with options A–D and mark the correct option at the end of each question using '**Answer:** X'."

// LevelPrompt 返回聊天模式的人设；mode 区分大小写，未知值使用 Beginner 人设。
func LevelPrompt(mode string) string {
	switch mode {
	case "Advanced":
		return "Be concise and rigorous. Focus on nuances, performance and edge cases."
	case "Intermediate":
		return "Explain clearly with best practices. Include small examples."
	default:
		return "You are a patient tutor. Explain step-by-step with simple examples and avoid jargon."
	}
}

// CleanHistory 把角色收敛为 user/assistant，并去掉空白内容。
func CleanHistory(history []model.WireMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, llm.Message{Role: string(model.NormalizeRole(m.Role)), Content: m.Content})
	}
	return out
}

// ChatMessages 组装聊天 / quiz 模式发给模型的完整消息序列。
func ChatMessages(mode, kind string, history []model.WireMessage) []llm.Message {
	cleaned := CleanHistory(history)
	msgs := make([]llm.Message, 0, len(cleaned)+2)
	msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: LevelPrompt(mode)})
	msgs = append(msgs, cleaned...)
	if kind == model.KindQuiz {
		msgs = append(msgs, llm.Message{Role: string(model.RoleUser), Content: QuizInstruction})
	}
	return msgs
}
