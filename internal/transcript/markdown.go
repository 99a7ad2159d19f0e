// Package transcript 把会话渲染为可下载的 Markdown。
package transcript

import (
	"strings"
	"time"

	"hanna-chat-go/internal/model"
)

// Title 是导出文件的一级标题。
const Title = "# HannaChatBot Transcript"

// Markdown 渲染消息列表：每条消息是一个 "### User" 或 "### Assistant" 小节。
func Markdown(messages []model.Message) string {
	return MarkdownFromWire(model.ToWire(messages))
}

// MarkdownFromWire 与 Markdown 相同，输入为 role/content 对。
func MarkdownFromWire(messages []model.WireMessage) string {
	sections := make([]string, 0, len(messages))
	for _, m := range messages {
		who := "Assistant"
		if m.Role == string(model.RoleUser) {
			who = "User"
		}
		sections = append(sections, "### "+who+"\n\n"+m.Content+"\n")
	}
	return Title + "\n\n" + strings.Join(sections, "\n")
}

// FileName 返回形如 hannabot-2024-05-01-12-30-00.md 的文件名（UTC）。
func FileName(t time.Time) string {
	return "hannabot-" + t.UTC().Format("2006-01-02-15-04-05") + ".md"
}
