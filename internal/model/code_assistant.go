package model

import "encoding/json"

// CodeKind 是代码助手的任务类型。
type CodeKind string

const (
	KindCodeReview  CodeKind = "code-review"
	KindCodeImprove CodeKind = "code-improve"
	KindTests       CodeKind = "tests"
)

// IsCodeKind 判断 kind 是否属于代码助手模式。
func IsCodeKind(kind string) bool {
	switch CodeKind(kind) {
	case KindCodeReview, KindCodeImprove, KindTests:
		return true
	}
	return false
}

// Severity 是问题的严重程度。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Issue 是代码审查发现的一个问题。ID 由模型给出，不保证唯一。
type Issue struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	LineHint string   `json:"lineHint"`
}

// CodeAssistantResult 是代码助手模式的结构化结果。
// Raw 只在模型输出无法解析时出现。
type CodeAssistantResult struct {
	Summary      string  `json:"summary"`
	Issues       []Issue `json:"issues"`
	ImprovedCode string  `json:"improvedCode"`
	Tests        string  `json:"tests"`
	Raw          string  `json:"raw,omitempty"`

	// Fields 保留解析出的原始顶层字段，用于区分“缺失”与“为空”。
	Fields map[string]json.RawMessage `json:"-"`
}

// Has 报告模型输出中是否出现了某个顶层字段。
func (r CodeAssistantResult) Has(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

// ParseFailureSummary 是解析失败时兜底结果的固定 summary。
const ParseFailureSummary = "Failed to parse model output as JSON."

// Failed 报告该结果是否为解析失败的兜底结果。
func (r CodeAssistantResult) Failed() bool {
	return r.Raw != "" || r.Summary == ParseFailureSummary
}
