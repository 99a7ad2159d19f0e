package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hanna-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	statsKeyPrefix = "hanna:stats:"
	statsIndexKey  = "hanna:stats:kinds"
)

// StatsRepository 定义了交换统计的读写接口。
type StatsRepository interface {
	Incr(ctx context.Context, event model.ExchangeEvent) error
	All(ctx context.Context) (map[string]model.KindStats, error)
}

type redisStatsRepository struct {
	redisClient *redis.Client
}

// NewStatsRepository 创建一个基于 Redis hash 的 StatsRepository。
func NewStatsRepository(redisClient *redis.Client) StatsRepository {
	return &redisStatsRepository{redisClient: redisClient}
}

// Incr 在一个事务中累加某个 kind 的计数。
func (r *redisStatsRepository) Incr(ctx context.Context, event model.ExchangeEvent) error {
	kind := event.StatsKind()
	key := statsKeyPrefix + kind
	status := model.ExchangeStatusOK
	if event.Status == model.ExchangeStatusError {
		status = model.ExchangeStatusError
	}
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, statsIndexKey, kind)
		pipe.HIncrBy(ctx, key, "total", 1)
		pipe.HIncrBy(ctx, key, status, 1)
		pipe.HIncrBy(ctx, key, "latency_ms_total", event.LatencyMs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment stats: %w", err)
	}
	return nil
}

// All 返回所有 kind 的统计。
func (r *redisStatsRepository) All(ctx context.Context) (map[string]model.KindStats, error) {
	kinds, err := r.redisClient.SMembers(ctx, statsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stats kinds: %w", err)
	}
	out := make(map[string]model.KindStats, len(kinds))
	for _, kind := range kinds {
		fields, err := r.redisClient.HGetAll(ctx, statsKeyPrefix+kind).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get stats for %s: %w", kind, err)
		}
		out[strings.TrimSpace(kind)] = parseStats(fields)
	}
	return out, nil
}

func parseStats(fields map[string]string) model.KindStats {
	n := func(k string) int64 {
		v, _ := strconv.ParseInt(fields[k], 10, 64)
		return v
	}
	s := model.KindStats{
		Total:          n("total"),
		OK:             n(model.ExchangeStatusOK),
		Error:          n(model.ExchangeStatusError),
		LatencyMsTotal: n("latency_ms_total"),
	}
	if s.Total > 0 {
		s.AvgLatencyMs = s.LatencyMsTotal / s.Total
	}
	return s
}
