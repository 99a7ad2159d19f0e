// Package codeassist 校验代码助手模式下模型输出的 JSON 结果。
package codeassist

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"hanna-chat-go/internal/model"

	"github.com/xeipuuv/gojsonschema"
)

// ParseFailureSummary 是解析失败时兜底结果的固定 summary。
const ParseFailureSummary = model.ParseFailureSummary

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// SchemaText 返回目标 JSON Schema 原文，供 prompt 编译器嵌入说明。
func SchemaText() string {
	return string(schemaJSON)
}

// Parse 将模型原始输出严格解析为 CodeAssistantResult。
// 解析成功时原样透传（缺失字段保持缺失，由 Fields 体现）；
// 解析失败时返回兜底结果，Raw 保存原始文本。Parse 从不返回错误。
func Parse(raw string) model.CodeAssistantResult {
	result, err := parseStrict(raw)
	if err != nil {
		return Fallback(raw)
	}
	return result
}

// Fallback 构造解析失败时的兜底结果。
func Fallback(raw string) model.CodeAssistantResult {
	return model.CodeAssistantResult{
		Summary:      ParseFailureSummary,
		Issues:       []model.Issue{},
		ImprovedCode: "",
		Tests:        "",
		Raw:          raw,
	}
}

func parseStrict(raw string) (model.CodeAssistantResult, error) {
	var result model.CodeAssistantResult

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return result, err
	}
	if fields == nil {
		return result, errors.New("top-level value is not an object")
	}
	// 拒绝尾随内容，例如 `{...} trailing`
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return result, errors.New("unexpected trailing data")
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, err
	}
	result.Fields = fields
	return result, nil
}

// Conformance 用 JSON Schema 检查模型输出，返回可读的问题列表；
// 无问题时返回 nil。它只用于诊断日志，不会影响 Parse 的结果。
func Conformance(raw string) []string {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return []string{fmt.Sprintf("schema validation failed: %v", err)}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}
