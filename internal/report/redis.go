package report

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/flowprobe/internal/config"
)

const (
	kindLatency      = "latency"
	kindUnrecognized = "unrecognized"
)

// RedisReporter appends samples to a Redis stream so other tools can
// consume the measurements without scraping stdout.
type RedisReporter struct {
	client       *redis.Client
	stream       string
	maxLen       int64
	writeTimeout time.Duration
}

// NewRedisClient builds a client from the sink configuration.
func NewRedisClient(cfg *config.RedisSinkConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// NewRedisReporter creates a reporter writing to cfg.Stream.
func NewRedisReporter(client *redis.Client, cfg *config.RedisSinkConfig) *RedisReporter {
	return &RedisReporter{
		client:       client,
		stream:       cfg.Stream,
		maxLen:       cfg.MaxLen,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (r *RedisReporter) Name() string { return "redis" }

func (r *RedisReporter) ReportLatency(ctx context.Context, s Sample) error {
	return r.add(ctx, kindLatency, s)
}

func (r *RedisReporter) ReportUnrecognized(ctx context.Context, s Sample) error {
	return r.add(ctx, kindUnrecognized, s)
}

func (r *RedisReporter) add(ctx context.Context, kind string, s Sample) error {
	if r.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"kind":         kind,
			"flow":         s.Flow.String(),
			"flow_tag":     uint8(s.Flow),
			"sequence":     s.Sequence,
			"count":        s.Count,
			"send_time_ns": s.SendTimeNs,
			"latency_ns":   s.Latency.Nanoseconds(),
			"source":       s.Source,
			"received_at":  s.ReceivedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
