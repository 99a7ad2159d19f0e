package codeassist

import (
	"testing"

	"hanna-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResult = `{
  "summary": "Looks fine overall.",
  "issues": [
    {"id": "1", "severity": "major", "type": "bug", "message": "Off by one", "lineHint": "L3"},
    {"id": "1", "severity": "info", "type": "style", "message": "Rename x", "lineHint": ""}
  ],
  "improvedCode": "for i := 0; i < n; i++ {}",
  "tests": ""
}`

func TestParseValid(t *testing.T) {
	res := Parse(validResult)
	assert.False(t, res.Failed())
	assert.Equal(t, "Looks fine overall.", res.Summary)
	require.Len(t, res.Issues, 2)
	// 重复的 issue id 原样保留
	assert.Equal(t, res.Issues[0].ID, res.Issues[1].ID)
	assert.Equal(t, model.SeverityMajor, res.Issues[0].Severity)
	assert.Equal(t, "for i := 0; i < n; i++ {}", res.ImprovedCode)
	assert.Empty(t, res.Raw)
	assert.True(t, res.Has("tests"))
	assert.Empty(t, Conformance(validResult))
}

func TestParseKeepsMissingFieldsAbsent(t *testing.T) {
	res := Parse(`{"summary":"only summary"}`)
	assert.False(t, res.Failed())
	assert.Equal(t, "only summary", res.Summary)
	assert.Nil(t, res.Issues)
	assert.False(t, res.Has("issues"))
	assert.False(t, res.Has("improvedCode"))
	assert.NotEmpty(t, Conformance(`{"summary":"only summary"}`))
}

func TestParseNotJSON(t *testing.T) {
	res := Parse("not json")
	assert.True(t, res.Failed())
	assert.Equal(t, ParseFailureSummary, res.Summary)
	assert.Equal(t, []model.Issue{}, res.Issues)
	assert.Equal(t, "", res.ImprovedCode)
	assert.Equal(t, "", res.Tests)
	assert.Equal(t, "not json", res.Raw)
}

func TestParseRejectsNonObjectsAndTrailingData(t *testing.T) {
	for _, raw := range []string{
		"",
		"null",
		"[1,2]",
		`"string"`,
		"```json\n{\"summary\":\"x\"}\n```",
		`{"summary":"x"} trailing`,
		`{"summary":"x"}{"summary":"y"}`,
		`{"summary": 3}`,
	} {
		res := Parse(raw)
		assert.True(t, res.Failed(), "input %q", raw)
		assert.Equal(t, raw, res.Raw, "input %q", raw)
	}
}

func TestParseAllowsSurroundingWhitespace(t *testing.T) {
	res := Parse("\n  {\"summary\":\"x\"}  \n")
	assert.False(t, res.Failed())
}

func TestConformanceReportsBadSeverity(t *testing.T) {
	raw := `{"summary":"s","issues":[{"id":"1","severity":"blocker","type":"t","message":"m","lineHint":""}],"improvedCode":"","tests":""}`
	problems := Conformance(raw)
	require.NotEmpty(t, problems)
	// 仍然可以解析
	assert.False(t, Parse(raw).Failed())
}

func TestSchemaTextIsJSON(t *testing.T) {
	assert.Contains(t, SchemaText(), `"improvedCode"`)
}
