package model

import "time"

// ExchangeEvent 记录后端完成的一次交换，发送到 Kafka 供统计使用。
type ExchangeEvent struct {
	Kind         string    `json:"kind"`
	Mode         string    `json:"mode"`
	MessageCount int       `json:"messageCount"`
	Status       string    `json:"status"`
	LatencyMs    int64     `json:"latencyMs"`
	At           time.Time `json:"at"`
}

const (
	ExchangeStatusOK    = "ok"
	ExchangeStatusError = "error"
)

// StatsKind 返回用于统计的 kind，普通聊天记为 chat。
func (e ExchangeEvent) StatsKind() string {
	if e.Kind == "" {
		return "chat"
	}
	return e.Kind
}

// KindStats 是某个 kind 的累计统计。
type KindStats struct {
	Total          int64 `json:"total"`
	OK             int64 `json:"ok"`
	Error          int64 `json:"error"`
	LatencyMsTotal int64 `json:"latencyMsTotal"`
	AvgLatencyMs   int64 `json:"avgLatencyMs"`
}
