package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// RedisEventQueue реализует очередь событий прогресса на базе Redis lists.
type RedisEventQueue struct {
	client *redis.Client
	key    string
}

var _ domain.EventQueue = (*RedisEventQueue)(nil)

// NewRedisEventQueue создаёт очередь по указанному ключу.
func NewRedisEventQueue(client *redis.Client, key string) *RedisEventQueue {
	return &RedisEventQueue{client: client, key: key}
}

// Publish кладёт событие в очередь.
func (q *RedisEventQueue) Publish(ctx context.Context, event domain.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие. При ack(false) событие уходит в конец очереди
// (Publish и BRPop работают с разных концов списка) и отбрасывается после MaxAttempts.
func (q *RedisEventQueue) Receive(ctx context.Context) (domain.ProgressEvent, domain.EventAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ProgressEvent{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ProgressEvent{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ProgressEvent{}, nil, err
		}
		if len(res) != 2 {
			return domain.ProgressEvent{}, nil, errors.New("redis queue: unexpected response")
		}
		raw := res[1]
		var event domain.ProgressEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return domain.ProgressEvent{}, nil, fmt.Errorf("decode event: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			retry, ok := nextAttempt(event)
			if !ok {
				metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
				return nil
			}
			payload, err := json.Marshal(retry)
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			return q.client.LPush(context.Background(), q.key, payload).Err()
		}
		return event, ack, nil
	}
}
