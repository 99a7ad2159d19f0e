package decoder

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{StatusCode: http.StatusOK, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func TestKind(t *testing.T) {
	cases := map[string]ShapeKind{
		"text/event-stream":                ShapeStreamed,
		"text/event-stream; charset=utf-8": ShapeStreamed,
		"application/stream+json":          ShapeStreamed,
		"application/x-ndjson":             ShapeStreamed,
		"application/json":                 ShapeStructured,
		"Application/JSON; charset=utf-8":  ShapeStructured,
		"text/plain":                       ShapePlainText,
		"":                                 ShapePlainText,
		"garbage/////":                     ShapePlainText,
	}
	for ct, want := range cases {
		assert.Equal(t, want, Kind(ct), ct)
	}
}

func TestDecodeStructured(t *testing.T) {
	out := Decode(response("application/json", `{"content":"hi"}`))
	s, ok := out.(Structured)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"content": "hi"}, s.Value)
	assert.Equal(t, ShapeStructured, out.Shape())
}

func TestDecodePlainText(t *testing.T) {
	out := Decode(response("text/plain", "hi"))
	assert.Equal(t, PlainText{Text: "hi"}, out)
}

func TestDecodeGarbageContentType(t *testing.T) {
	out := Decode(response("???", "not json at all"))
	assert.Equal(t, PlainText{Text: "not json at all"}, out)

	out = Decode(response("", "{broken"))
	assert.Equal(t, PlainText{Text: "{broken"}, out)
}

func TestDecodeMalformedJSONFallsBackToText(t *testing.T) {
	out := Decode(response("application/json", "{oops"))
	p, ok := out.(PlainText)
	require.True(t, ok)
	assert.Equal(t, "{oops", p.Text)
	assert.True(t, errors.Is(p.Err, ErrMalformedJSON))
}

func TestDecodeNilResponse(t *testing.T) {
	assert.Equal(t, PlainText{}, Decode(nil))
}

func TestDecodeStreamed(t *testing.T) {
	out := Decode(response("text/event-stream", "hello world"))
	s, ok := out.(Streamed)
	require.True(t, ok)
	text, err := collect(s.Stream)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func collect(s *DeltaStream) (string, error) {
	if err := s.Claim(); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		d, err := s.Next()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(d)
	}
}
