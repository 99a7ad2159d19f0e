package service

import (
	"context"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/repository"
	"hanna-chat-go/pkg/log"
)

// StatsService 维护按 kind 聚合的交换统计。
// 它既是 Kafka 消费端的 EventProcessor，也可以在未启用 Kafka 时直接作为 ExchangeRecorder。
type StatsService interface {
	Process(ctx context.Context, event model.ExchangeEvent) error
	Record(ctx context.Context, event model.ExchangeEvent)
	Snapshot(ctx context.Context) (map[string]model.KindStats, error)
}

type statsService struct {
	repo repository.StatsRepository
}

// NewStatsService 创建一个新的 StatsService。
func NewStatsService(repo repository.StatsRepository) StatsService {
	return &statsService{repo: repo}
}

func (s *statsService) Process(ctx context.Context, event model.ExchangeEvent) error {
	return s.repo.Incr(ctx, event)
}

func (s *statsService) Record(ctx context.Context, event model.ExchangeEvent) {
	// 请求可能已经结束，不使用请求的 ctx
	if err := s.repo.Incr(context.WithoutCancel(ctx), event); err != nil {
		log.Warnf("记录交换统计失败: %v", err)
	}
}

func (s *statsService) Snapshot(ctx context.Context) (map[string]model.KindStats, error) {
	return s.repo.All(ctx)
}
