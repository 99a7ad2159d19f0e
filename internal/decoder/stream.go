package decoder

import (
	"errors"
	"io"
	"sync"
	"unicode/utf8"
)

// ErrStreamConsumed 表示流已被其他消费者认领。
var ErrStreamConsumed = errors.New("delta stream already consumed")

const readBufferSize = 4096

// DeltaStream 按到达顺序产出原始文本增量，不做按行或按 token 的对齐。
// 跨两次读取被截断的 UTF-8 字符会等到完整后再输出。
type DeltaStream struct {
	body io.ReadCloser
	buf  []byte
	// 上一次读取末尾不完整的字节
	pending []byte
	done    bool

	claimOnce sync.Once
}

// NewDeltaStream 包装 body，流结束时负责关闭。
func NewDeltaStream(body io.ReadCloser) *DeltaStream {
	return &DeltaStream{body: body, buf: make([]byte, readBufferSize)}
}

// Claim 认领流，只有第一次成功，之后返回 ErrStreamConsumed。
func (s *DeltaStream) Claim() error {
	ok := false
	s.claimOnce.Do(func() { ok = true })
	if !ok {
		return ErrStreamConsumed
	}
	return nil
}

// Next 返回下一段非空增量。剩余字节输出后返回 io.EOF，其他 error 是传输失败，两种情况下流都会关闭。
func (s *DeltaStream) Next() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		n, err := s.body.Read(s.buf)
		if n > 0 {
			data := append(s.pending, s.buf[:n]...)
			cut := completePrefix(data)
			s.pending = append([]byte(nil), data[cut:]...)
			if cut > 0 {
				delta := string(data[:cut])
				if err != nil {
					// 下一次调用再处理 err
					s.deferErr(err)
				}
				return delta, nil
			}
		}
		if err != nil {
			return s.finish(err)
		}
	}
}

// deferErr 暂存与数据一同到达的读错误。
func (s *DeltaStream) deferErr(err error) {
	s.body = &erroredReader{ReadCloser: s.body, err: err}
}

func (s *DeltaStream) finish(err error) (string, error) {
	s.done = true
	_ = s.body.Close()
	if errors.Is(err, io.EOF) {
		if len(s.pending) > 0 {
			tail := string(s.pending)
			s.pending = nil
			return tail, nil
		}
		return "", io.EOF
	}
	return "", err
}

// Close 直接释放响应体，不读完剩余内容。
func (s *DeltaStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.body.Close()
}

// completePrefix 返回 b 中不以残缺 UTF-8 序列结尾的最长前缀长度。
func completePrefix(b []byte) int {
	n := len(b)
	// 一个 UTF-8 字符最多 4 字节，只需要回看末尾 3 个字节
	for i := 1; i <= utf8.UTFMax-1 && i <= n; i++ {
		c := b[n-i]
		if c < 0x80 {
			return n
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[n-i:]) {
				return n
			}
			return n - i
		}
	}
	return n
}

type erroredReader struct {
	io.ReadCloser
	err error
}

func (r *erroredReader) Read([]byte) (int, error) { return 0, r.err }
