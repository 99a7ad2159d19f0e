// Package prompt 组装发送给模型的消息：代码助手模式的 system/user 指令，
// 以及普通聊天 / quiz 模式的人设与历史。这里的函数都是纯函数。
package prompt

import (
	"fmt"
	"strings"

	"hanna-chat-go/internal/codeassist"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/pkg/llm"
)

// MaxCodeRunes 是嵌入指令的源码最大字符数。
const MaxCodeRunes = 12000

const (
	BeginCodeMarker = "-----BEGIN CODE-----"
	EndCodeMarker   = "-----END CODE-----"
)

const truncationNote = "(Note: the code was truncated to the first 12000 characters.)"

// Input 是代码助手模式的编译输入。
type Input struct {
	Kind            model.CodeKind
	Code            string
	Language        string
	ExperienceLevel string
}

var personas = map[string]string{
	"beginner": "The user is a beginner. Use plain language, explain every finding in one or two simple sentences, " +
		"and avoid jargon unless you define it.",
	"intermediate": "The user is an intermediate developer. Be clear and practical, reference common best practices, " +
		"and keep explanations short.",
	"advanced": "The user is an advanced developer. Be concise and rigorous. Focus on correctness, performance, " +
		"concurrency and edge cases.",
}

var tasks = map[model.CodeKind]string{
	model.KindCodeReview: "Review the code below. Report concrete issues (bugs, security, performance, style) in \"issues\", " +
		"ordered from most to least severe. Leave \"improvedCode\" and \"tests\" as empty strings.",
	model.KindCodeImprove: "Improve the code below. Put the complete rewritten source in \"improvedCode\", keeping behavior " +
		"unless it is a bug, and list what you changed in \"issues\". Leave \"tests\" as an empty string.",
	model.KindTests: "Write unit tests for the code below using the idiomatic test framework for its language. " +
		"Put the complete test source in \"tests\" and note untested risks in \"issues\". Leave \"improvedCode\" as an empty string.",
}

// Persona 返回经验等级对应的人设，未知等级按 beginner 处理（大小写不敏感）。
func Persona(level string) string {
	if p, ok := personas[strings.ToLower(strings.TrimSpace(level))]; ok {
		return p
	}
	return personas["beginner"]
}

// Task 返回任务说明；未知 kind 按 code-review 处理。
func Task(kind model.CodeKind) string {
	if t, ok := tasks[kind]; ok {
		return t
	}
	return tasks[model.KindCodeReview]
}

// Compile 返回 [system, user] 两条消息。
func Compile(in Input) []llm.Message {
	var sys strings.Builder
	sys.WriteString("You are HannaAI, a code assistant. ")
	sys.WriteString(Persona(in.ExperienceLevel))
	sys.WriteString("\n\nRespond with a single JSON object and nothing else: no Markdown fences, no prose. ")
	sys.WriteString("The object must conform to this JSON Schema:\n")
	sys.WriteString(codeassist.SchemaText())

	code, truncated := Truncate(in.Code, MaxCodeRunes)
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = "unknown"
	}

	var user strings.Builder
	user.WriteString(Task(in.Kind))
	fmt.Fprintf(&user, "\n\nLanguage: %s\n", language)
	if truncated {
		user.WriteString(truncationNote)
		user.WriteString("\n")
	}
	user.WriteString(BeginCodeMarker)
	user.WriteString("\n")
	user.WriteString(code)
	user.WriteString("\n")
	user.WriteString(EndCodeMarker)

	return []llm.Message{
		{Role: string(model.RoleSystem), Content: sys.String()},
		{Role: string(model.RoleUser), Content: user.String()},
	}
}

// Truncate 按字符（rune）截断 s，返回截断后的字符串以及是否发生了截断。
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 {
		return "", s != ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}
