package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hanna-chat-go/internal/decoder"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend 记录收到的请求，并用 handler 生成响应。
type backend struct {
	mu       sync.Mutex
	requests []model.ChatRequest
	handler  http.HandlerFunc
}

func newBackend(t *testing.T, h http.HandlerFunc) (*backend, *httptest.Server) {
	b := &backend{handler: h}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.requests = append(b.requests, req)
		b.mu.Unlock()
		b.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) last() model.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func newClient(t *testing.T, url string) (*Client, *store.Store) {
	t.Helper()
	st := store.New(nil, "test")
	return New(url, st), st
}

func TestSendJSONEndToEnd(t *testing.T) {
	be, srv := newBackend(t, jsonReply(`{"content":"world"}`))
	c, st := newClient(t, srv.URL)
	before := st.Len()

	ex, err := c.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "world", ex.Content)
	assert.Equal(t, decoder.ShapeStructured, ex.Shape)
	assert.False(t, ex.Failed)

	all := st.All()
	require.Len(t, all, before+2)
	assert.Equal(t, model.RoleUser, all[before].Role)
	assert.Equal(t, "hello", all[before].Content)
	assert.Equal(t, model.RoleAssistant, all[before+1].Role)
	assert.Equal(t, "world", all[before+1].Content)
	assert.Equal(t, ex.MessageID, all[before+1].ID)

	req := be.last()
	assert.Equal(t, "Beginner", req.Mode)
	assert.Empty(t, req.Kind)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, model.WireMessage{Role: "assistant", Content: model.SeedGreeting}, req.Messages[0])
	assert.Equal(t, model.WireMessage{Role: "user", Content: "hello"}, req.Messages[1])
}

func TestSendBlankIsNoop(t *testing.T) {
	c, st := newClient(t, "http://127.0.0.1:1")
	ex, err := c.Send(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Equal(t, Exchange{}, ex)
	assert.Equal(t, 1, st.Len())
}

func TestSendLevelOverride(t *testing.T) {
	be, srv := newBackend(t, jsonReply(`{"content":"x"}`))
	st := store.New(nil, "test")
	c := New(srv.URL, st, WithLevel("Intermediate"))

	_, err := c.Send(context.Background(), "a", "")
	require.NoError(t, err)
	assert.Equal(t, "Intermediate", be.last().Mode)

	_, err = c.Send(context.Background(), "b", "Advanced")
	require.NoError(t, err)
	assert.Equal(t, "Advanced", be.last().Mode)
}

func TestStructuredFallbackFields(t *testing.T) {
	cases := map[string]string{
		`{"content":"c","reply":"r"}`:      "c",
		`{"reply":"r"}`:                    "r",
		`{"message":{"content":"nested"}}`: "nested",
		`{"content":42,"reply":"r"}`:       "r",
		`{"other":"x"}`:                    ReceivedResponse,
		`["not","an","object"]`:            ReceivedResponse,
	}
	for body, want := range cases {
		_, srv := newBackend(t, jsonReply(body))
		c, _ := newClient(t, srv.URL)
		ex, err := c.Send(context.Background(), "q", "")
		require.NoError(t, err)
		assert.Equal(t, want, ex.Content, body)
	}
}

func TestPlainTextReply(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "plain answer")
	})
	c, _ := newClient(t, srv.URL)
	ex, err := c.Send(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", ex.Content)
	assert.Equal(t, decoder.ShapePlainText, ex.Shape)
}

func TestEmptyPlainTextBecomesReceivedResponse(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	})
	c, _ := newClient(t, srv.URL)
	ex, _ := c.Send(context.Background(), "q", "")
	assert.Equal(t, ReceivedResponse, ex.Content)
}

func TestMalformedJSONUsesRawText(t *testing.T) {
	_, srv := newBackend(t, jsonReply(`{"content":`))
	c, _ := newClient(t, srv.URL)
	ex, _ := c.Send(context.Background(), "q", "")
	assert.Equal(t, `{"content":`, ex.Content)
	assert.False(t, ex.Failed)
}

func TestStreamedReplyUpdatesPlaceholderIncrementally(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		for _, part := range []string{"Hel", "lo ", "wor", "ld"} {
			_, _ = io.WriteString(w, part)
			f.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	})

	var mu sync.Mutex
	var snapshots []string
	st := store.New(nil, "test", store.WithObserver(func(m model.Message) {
		if m.Role == model.RoleAssistant {
			mu.Lock()
			snapshots = append(snapshots, m.Content)
			mu.Unlock()
		}
	}))
	c := New(srv.URL, st)

	ex, err := c.Send(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", ex.Content)
	assert.Equal(t, decoder.ShapeStreamed, ex.Shape)

	got, _ := st.Get(ex.MessageID)
	assert.Equal(t, "Hello world", got.Content)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)
	assert.Equal(t, "", snapshots[0])
	// 可见文本单调不减
	for i := 1; i < len(snapshots); i++ {
		assert.True(t, strings.HasPrefix(snapshots[i], snapshots[i-1]), "%q then %q", snapshots[i-1], snapshots[i])
	}
}

func TestEmptyStreamBecomesReceivedResponse(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
	})
	c, _ := newClient(t, srv.URL)
	ex, _ := c.Send(context.Background(), "q", "")
	assert.Equal(t, ReceivedResponse, ex.Content)
}

func TestStreamInterruptedKeepsText(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Content-Length", "100")
		_, _ = io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		// 声明长度未写满即断开
	})
	c, _ := newClient(t, srv.URL)
	ex, err := c.Send(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, ex.Failed)
	assert.Equal(t, "partial\n"+SendFailure, ex.Content)
}

func TestHTTPErrorUsesBody(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"OpenAI API key not configured."}`)
	})
	c, st := newClient(t, srv.URL)
	ex, err := c.Send(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, ex.Failed)
	assert.Equal(t, `{"error":"OpenAI API key not configured."}`, ex.Content)
	got, _ := st.Get(ex.MessageID)
	assert.Equal(t, ex.Content, got.Content)
}

func TestHTTPErrorWithEmptyBody(t *testing.T) {
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c, _ := newClient(t, srv.URL)
	ex, _ := c.Send(context.Background(), "q", "")
	assert.Equal(t, "Request failed (502)", ex.Content)
}

func TestNetworkFailureResolvesPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, st := newClient(t, url)
	ex, err := c.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.True(t, ex.Failed)
	assert.Equal(t, SendFailure, ex.Content)

	all := st.All()
	require.Len(t, all, 3)
	assert.Equal(t, "hello", all[1].Content)
	assert.Equal(t, SendFailure, all[2].Content)
}

func TestRegenerateNoopWithoutPair(t *testing.T) {
	be, srv := newBackend(t, jsonReply(`{"content":"x"}`))
	c, st := newClient(t, srv.URL)

	// 只有欢迎消息：没有前置的用户消息
	before := st.All()
	ex, err := c.Regenerate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Exchange{}, ex)
	assert.Equal(t, before, st.All())

	// 只有用户消息，没有助手消息
	st.Reset(model.Message{Role: model.RoleUser, Content: "question"})
	before = st.All()
	ex, err = c.Regenerate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Exchange{}, ex)
	assert.Equal(t, before, st.All())

	assert.Empty(t, be.requests)
}

func TestRegenerateReplaysPrefixAndKeepsLaterMessages(t *testing.T) {
	be, srv := newBackend(t, jsonReply(`{"content":"second answer"}`))
	c, st := newClient(t, srv.URL)

	st.Append(model.Message{Role: model.RoleUser, Content: "q1"})
	st.UpsertContent("a1", "first answer")
	st.Append(model.Message{Role: model.RoleUser, Content: "follow-up without reply"})
	before := st.All()

	ex, err := c.Regenerate(context.Background(), "Advanced")
	require.NoError(t, err)
	assert.Equal(t, "a1", ex.MessageID)

	after := st.All()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
	got, _ := st.Get("a1")
	assert.Equal(t, "second answer", got.Content)
	assert.Equal(t, "follow-up without reply", after[3].Content)

	req := be.last()
	assert.Equal(t, "Advanced", req.Mode)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "q1", req.Messages[1].Content)
}

func TestRegenerateClearsTargetBeforeRequest(t *testing.T) {
	var seenDuring string
	var c *Client
	var st *store.Store
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		m, _ := st.Get("a1")
		seenDuring = m.Content
		jsonReply(`{"content":"new"}`)(w, nil)
	})
	c, st = newClient(t, srv.URL)
	st.Append(model.Message{Role: model.RoleUser, Content: "q"})
	st.UpsertContent("a1", "old")

	_, err := c.Regenerate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", seenDuring)
}

func TestRegenerateFailureString(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, st := newClient(t, url)
	st.Append(model.Message{Role: model.RoleUser, Content: "q"})
	st.UpsertContent("a1", "old")

	ex, _ := c.Regenerate(context.Background(), "")
	assert.Equal(t, RegenFailure, ex.Content)
	got, _ := st.Get("a1")
	assert.Equal(t, RegenFailure, got.Content)
}

func TestQuizUsesLastSixEntries(t *testing.T) {
	be, srv := newBackend(t, jsonReply(`{"content":"1. Question"}`))
	c, st := newClient(t, srv.URL)
	for i := 0; i < 4; i++ {
		st.Append(model.Message{Role: model.RoleUser, Content: "u"})
		st.UpsertContent("a"+string(rune('0'+i)), "a")
	}
	contextBefore := st.All()[st.Len()-QuizContextSize:]

	ex, err := c.Quiz(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1. Question", ex.Content)

	req := be.last()
	assert.Equal(t, model.KindQuiz, req.Kind)
	assert.Equal(t, model.ToWire(contextBefore), req.Messages)

	all := st.All()
	assert.Equal(t, QuizRequest, all[len(all)-2].Content)
	assert.Equal(t, model.RoleUser, all[len(all)-2].Role)
	assert.Equal(t, "1. Question", all[len(all)-1].Content)
}

func TestQuizFailureString(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := newClient(t, url)
	ex, _ := c.Quiz(context.Background(), "")
	assert.Equal(t, QuizFailure, ex.Content)
}

func TestSecondExchangeInFlightIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	_, srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		jsonReply(`{"content":"done"}`)(w, nil)
	})
	c, st := newClient(t, srv.URL)

	done := make(chan Exchange)
	go func() {
		ex, _ := c.Send(context.Background(), "first", "")
		done <- ex
	}()
	<-entered

	lenBefore := st.Len()
	_, err := c.Send(context.Background(), "second", "")
	assert.ErrorIs(t, err, ErrExchangeInFlight)
	_, err = c.Regenerate(context.Background(), "")
	assert.ErrorIs(t, err, ErrExchangeInFlight)
	_, err = c.Quiz(context.Background(), "")
	assert.ErrorIs(t, err, ErrExchangeInFlight)
	assert.Equal(t, lenBefore, st.Len())

	close(release)
	assert.Equal(t, "done", (<-done).Content)

	_, err = c.Send(context.Background(), "third", "")
	assert.NoError(t, err)
}

func TestCanceledContextIsNetworkFailure(t *testing.T) {
	_, srv := newBackend(t, jsonReply(`{"content":"x"}`))
	c, _ := newClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex, err := c.Send(ctx, "q", "")
	require.NoError(t, err)
	assert.Equal(t, SendFailure, ex.Content)
}

func TestSetLevelDuringExchanges(t *testing.T) {
	be, srv := newBackend(t, jsonReply(`{"content":"x"}`))
	c, _ := newClient(t, srv.URL)

	levels := []string{"Beginner", "Intermediate", "Advanced"}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.SetLevel(levels[i%len(levels)])
			_ = c.Level()
		}
	}()
	for i := 0; i < 10; i++ {
		_, err := c.Send(context.Background(), "q", "")
		require.NoError(t, err)
		assert.Contains(t, levels, be.last().Mode)
	}
	wg.Wait()

	c.SetLevel("Advanced")
	assert.Equal(t, "Advanced", c.Level())
	_, err := c.Send(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "Advanced", be.last().Mode)
}
