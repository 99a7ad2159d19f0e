// Package store 提供按插入顺序保存会话消息的 Message Store。
// 每次变更都会把完整的有序消息序列交给后台协程写入注入的 BlobStore；
// 变更本身从不等待 I/O，积压时只保存最新的快照。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/pkg/log"

	"github.com/google/uuid"
)

// ErrBlobNotFound 表示 key 下没有任何已保存的内容。
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore 是外部持久化能力：按 key 保存 / 读取一段 JSON。
type BlobStore interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// Observer 在某条消息被创建或更新后调用。
type Observer func(msg model.Message)

// Option 配置 Store。
type Option func(*Store)

// WithObserver 注册唯一的变更订阅者。
func WithObserver(fn Observer) Option {
	return func(s *Store) { s.observer = fn }
}

// WithSaveTimeout 设置单次持久化的超时时间。
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// Store 是会话消息的有序集合，并发安全。
type Store struct {
	mu       sync.RWMutex
	messages []model.Message
	index    map[string]int

	blob        BlobStore
	key         string
	saveTimeout time.Duration
	observer    Observer

	// version 在每次变更时递增（受 mu 保护）
	version uint64

	// 以下字段受 pmu 保护，由后台 saver 使用
	pmu      sync.Mutex
	saveDone *sync.Cond
	pending  []model.Message
	pendingV uint64
	saved    uint64
	lastErr  error
	closed   bool
	kick     chan struct{}
}

// New 创建 Store，并尽力从 blob 中恢复；缺失或损坏时静默回退到欢迎消息。
func New(blob BlobStore, key string, opts ...Option) *Store {
	s := &Store{
		blob:        blob,
		key:         key,
		saveTimeout: 2 * time.Second,
		index:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	restored := s.restore()
	if len(restored) == 0 {
		restored = []model.Message{model.SeedMessage()}
	}
	s.setLocked(restored)

	s.saveDone = sync.NewCond(&s.pmu)
	if s.blob != nil {
		s.kick = make(chan struct{}, 1)
		go s.saver()
	}
	return s
}

func (s *Store) restore() []model.Message {
	if s.blob == nil {
		return nil
	}
	ctx, cancel := s.ioContext()
	defer cancel()

	data, err := s.blob.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrBlobNotFound) {
			log.Warnf("恢复消息失败, key=%s, err=%v", s.key, err)
		}
		return nil
	}
	msgs, err := decodeMessages(data)
	if err != nil {
		log.Warnf("已保存的消息无法解析，使用默认会话, key=%s, err=%v", s.key, err)
		return nil
	}
	return msgs
}

// decodeMessages 宽松地解析持久化的消息数组，对每一条做字段规范化。
func decodeMessages(data []byte) ([]model.Message, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, m := range raw {
		msg := normalize(m)
		if seen[msg.ID] {
			// 重复 id 会破坏“按 id 定位占位消息”，重新分配
			msg.ID = uuid.NewString()
		}
		seen[msg.ID] = true
		out = append(out, msg)
	}
	return out, nil
}

func normalize(m map[string]any) model.Message {
	msg := model.Message{
		Role:    model.NormalizeRole(model.ToText(m["role"])),
		Content: model.ToText(m["content"]),
	}
	switch id := m["id"].(type) {
	case string:
		msg.ID = id
	case float64:
		msg.ID = fmt.Sprintf("%.0f", id)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	switch ts := m["createdAt"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.CreatedAt = t.UTC()
		}
	case float64:
		msg.CreatedAt = time.UnixMilli(int64(ts)).UTC()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = model.Now()
	}
	return msg
}

// Append 在末尾追加一条消息并返回其 id。缺失的 id / createdAt 会被补齐。
func (s *Store) Append(msg model.Message) string {
	s.mu.Lock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, exists := s.index[msg.ID]; exists {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = model.Now()
	}
	msg.Role = model.NormalizeRole(string(msg.Role))
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	snapshot, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	s.persist(snapshot, version)
	s.notify(msg)
	return msg.ID
}

// UpsertContent 替换指定 id 的内容；id 不存在时追加一条 assistant 消息。
// 已存在的消息保持原有位置、role 与 createdAt。
func (s *Store) UpsertContent(id, content string) {
	s.mu.Lock()
	var msg model.Message
	if i, ok := s.index[id]; ok {
		s.messages[i].Content = content
		msg = s.messages[i]
	} else {
		msg = model.Message{ID: id, Role: model.RoleAssistant, Content: content, CreatedAt: model.Now()}
		s.index[id] = len(s.messages)
		s.messages = append(s.messages, msg)
	}
	snapshot, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	s.persist(snapshot, version)
	s.notify(msg)
}

// All 返回按插入顺序排列的消息副本。
func (s *Store) All() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get 按 id 查找消息。
func (s *Store) Get(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Message{}, false
	}
	return s.messages[i], true
}

// Len 返回消息条数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset 把会话重置为只包含 seed 的状态。
func (s *Store) Reset(seed model.Message) {
	if seed.ID == "" {
		seed.ID = model.SeedMessageID
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = model.Now()
	}
	s.mu.Lock()
	s.setLocked([]model.Message{seed})
	snapshot, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	s.persist(snapshot, version)
	s.notify(seed)
}

// Clear 重置为默认欢迎消息。
func (s *Store) Clear() {
	s.Reset(model.SeedMessage())
}

// LastPersistError 返回最近一次持久化的错误（成功后清空）。
func (s *Store) LastPersistError() error {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	return s.lastErr
}

// Flush 等待调用时刻之前的所有变更写入 BlobStore，返回最近一次持久化的错误。
func (s *Store) Flush(ctx context.Context) error {
	if s.blob == nil {
		return nil
	}
	s.mu.RLock()
	target := s.version
	s.mu.RUnlock()

	stop := context.AfterFunc(ctx, func() {
		s.pmu.Lock()
		s.saveDone.Broadcast()
		s.pmu.Unlock()
	})
	defer stop()

	s.pmu.Lock()
	defer s.pmu.Unlock()
	for s.saved < target && !s.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.saveDone.Wait()
	}
	return s.lastErr
}

// Close 刷新未保存的变更并停止后台 saver。之后的变更只保留在内存中。
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if s.blob != nil && !s.closed {
		s.closed = true
		close(s.kick)
		s.saveDone.Broadcast()
	}
	return err
}

func (s *Store) setLocked(msgs []model.Message) {
	s.messages = msgs
	s.index = make(map[string]int, len(msgs))
	for i, m := range msgs {
		s.index[m.ID] = i
	}
}

func (s *Store) bumpLocked() uint64 {
	s.version++
	return s.version
}

func (s *Store) snapshotLocked() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// persist 把快照交给后台 saver 后立即返回；较旧的快照会被较新的替换。
func (s *Store) persist(snapshot []model.Message, version uint64) {
	if s.blob == nil {
		return
	}
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if s.closed {
		log.Warnf("Store 已关闭，变更未持久化, key=%s", s.key)
		return
	}
	if version <= s.pendingV {
		return
	}
	s.pending, s.pendingV = snapshot, version
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// saver 串行写入最新的待保存快照，失败只记录日志。
func (s *Store) saver() {
	for range s.kick {
		for {
			s.pmu.Lock()
			if s.pending == nil {
				s.pmu.Unlock()
				break
			}
			snapshot, version := s.pending, s.pendingV
			s.pending = nil
			s.pmu.Unlock()

			err := s.save(snapshot)

			s.pmu.Lock()
			s.saved = version
			s.lastErr = err
			s.saveDone.Broadcast()
			s.pmu.Unlock()
		}
	}
}

func (s *Store) save(snapshot []model.Message) error {
	data, err := json.Marshal(snapshot)
	if err == nil {
		ctx, cancel := s.ioContext()
		err = s.blob.Save(ctx, s.key, data)
		cancel()
	}
	if err != nil {
		log.Warnf("持久化消息失败, key=%s, err=%v", s.key, err)
	}
	return err
}

func (s *Store) notify(msg model.Message) {
	if s.observer != nil {
		s.observer(msg)
	}
}

func (s *Store) ioContext() (context.Context, context.CancelFunc) {
	if s.saveTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.saveTimeout)
}
