package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"hanna-chat-go/internal/codeassist"
	"hanna-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileProducesSystemAndUser(t *testing.T) {
	msgs := Compile(Input{Kind: model.KindCodeImprove, Code: "x := 1", Language: "go", ExperienceLevel: "Advanced"})
	require.Len(t, msgs, 2)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, codeassist.SchemaText())
	assert.Contains(t, msgs[0].Content, Persona("advanced"))

	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, Task(model.KindCodeImprove))
	assert.Contains(t, msgs[1].Content, "Language: go")
	assert.Contains(t, msgs[1].Content, BeginCodeMarker+"\nx := 1\n"+EndCodeMarker)
	assert.NotContains(t, msgs[1].Content, truncationNote)
}

func TestCompileIsPure(t *testing.T) {
	in := Input{Kind: model.KindTests, Code: "def f(): pass", Language: "python"}
	assert.Equal(t, Compile(in), Compile(in))
}

func TestPersonaDefaultsToBeginner(t *testing.T) {
	assert.Equal(t, Persona("beginner"), Persona("guru"))
	assert.Equal(t, Persona("beginner"), Persona(""))
	assert.Equal(t, Persona("intermediate"), Persona(" INTERMEDIATE "))
	assert.NotEqual(t, Persona("beginner"), Persona("advanced"))
}

func TestTaskPerKind(t *testing.T) {
	assert.NotEqual(t, Task(model.KindCodeReview), Task(model.KindCodeImprove))
	assert.NotEqual(t, Task(model.KindCodeReview), Task(model.KindTests))
	assert.Equal(t, Task(model.KindCodeReview), Task("unknown"))
}

func TestCompileTruncatesLongCode(t *testing.T) {
	code := strings.Repeat("é", MaxCodeRunes+50)
	msgs := Compile(Input{Kind: model.KindCodeReview, Code: code})
	user := msgs[1].Content

	assert.Contains(t, user, truncationNote)
	assert.Contains(t, user, "Language: unknown")
	start := strings.Index(user, BeginCodeMarker) + len(BeginCodeMarker) + 1
	end := strings.Index(user, "\n"+EndCodeMarker)
	assert.Equal(t, MaxCodeRunes, utf8.RuneCountInString(user[start:end]))
}

func TestTruncate(t *testing.T) {
	s, cut := Truncate("héllo", 3)
	assert.Equal(t, "hél", s)
	assert.True(t, cut)

	s, cut = Truncate("abc", 3)
	assert.Equal(t, "abc", s)
	assert.False(t, cut)
}

func TestLevelPrompt(t *testing.T) {
	assert.Equal(t, "Be concise and rigorous. Focus on nuances, performance and edge cases.", LevelPrompt("Advanced"))
	assert.Equal(t, "Explain clearly with best practices. Include small examples.", LevelPrompt("Intermediate"))
	assert.Equal(t, LevelPrompt("Beginner"), LevelPrompt("advanced"))
}

func TestChatMessagesCleansHistory(t *testing.T) {
	history := []model.WireMessage{
		{Role: "assistant", Content: "Hello!"},
		{Role: "system", Content: "ignored role"},
		{Role: "user", Content: "   "},
		{Role: "user", Content: "What is Go?"},
	}
	msgs := ChatMessages("Intermediate", "", history)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, LevelPrompt("Intermediate"), msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "ignored role", msgs[2].Content)
	assert.Equal(t, "user", msgs[3].Role)
}

func TestChatMessagesQuizAppendsInstruction(t *testing.T) {
	msgs := ChatMessages("Beginner", model.KindQuiz, []model.WireMessage{{Role: "user", Content: "goroutines"}})
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Equal(t, QuizInstruction, msgs[2].Content)
}
