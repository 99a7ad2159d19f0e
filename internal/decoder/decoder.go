// Package decoder 按 Content-Type 把后端响应归为三类：增量文本流、解析后的 JSON 或纯文本。
package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ShapeKind 是响应的传输形态。
type ShapeKind int

const (
	ShapePlainText ShapeKind = iota
	ShapeStreamed
	ShapeStructured
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeStreamed:
		return "streamed"
	case ShapeStructured:
		return "structured"
	default:
		return "plain"
	}
}

// 流式 Content-Type 标记，未命中的一律按纯文本处理
var streamMarkers = []string{"text/event-stream", "application/stream+json", "ndjson"}

const jsonMarker = "application/json"

// Kind 按 Content-Type 头判断形态。
func Kind(contentType string) ShapeKind {
	ct := strings.ToLower(contentType)
	for _, m := range streamMarkers {
		if strings.Contains(ct, m) {
			return ShapeStreamed
		}
	}
	if strings.Contains(ct, jsonMarker) {
		return ShapeStructured
	}
	return ShapePlainText
}

// Outcome 是 Streamed、Structured 或 PlainText 之一。
type Outcome interface {
	Shape() ShapeKind
	isOutcome()
}

// Streamed 持有只能消费一次的增量流，流读完后关闭响应体。
type Streamed struct {
	Stream *DeltaStream
}

// Structured 是完整解析后的 JSON。
type Structured struct {
	Value any
}

// PlainText 是原始响应体。JSON 解析失败或读取不完整时 Err 非空。
type PlainText struct {
	Text string
	Err  error
}

func (Streamed) Shape() ShapeKind   { return ShapeStreamed }
func (Structured) Shape() ShapeKind { return ShapeStructured }
func (PlainText) Shape() ShapeKind  { return ShapePlainText }

func (Streamed) isOutcome()   {}
func (Structured) isOutcome() {}
func (PlainText) isOutcome()  {}

// ErrMalformedJSON 表示声明为 JSON 的响应体无法解析。
var ErrMalformedJSON = errors.New("malformed json body")

// Decode 对 resp 分类并给出结果，不返回 error，失败放在 PlainText.Err 中。
// 流式响应体交给 DeltaStream，其余形态在这里读完并关闭。
func Decode(resp *http.Response) Outcome {
	if resp == nil || resp.Body == nil {
		return PlainText{}
	}
	kind := Kind(resp.Header.Get("Content-Type"))
	if kind == ShapeStreamed {
		return Streamed{Stream: NewDeltaStream(resp.Body)}
	}

	defer resp.Body.Close()
	body, readErr := io.ReadAll(resp.Body)
	if kind == ShapeStructured && readErr == nil {
		return decodeJSON(body)
	}
	if readErr != nil {
		readErr = fmt.Errorf("read body: %w", readErr)
	}
	return PlainText{Text: string(body), Err: readErr}
}

func decodeJSON(body []byte) Outcome {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return PlainText{Text: string(body), Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	return Structured{Value: v}
}
