package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"comfyworker/internal/worker/processor"
)

// popBlock bounds each BRPOP so the worker loop can observe cancellation.
const popBlock = 5 * time.Second

type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Push encola el job (LPUSH); Pop lo consume por el otro extremo.
func (q *RedisQueue) Push(ctx context.Context, job processor.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.LPush(ctx, q.queueName, payload).Err()
}

// Pop bloquea hasta que exista un elemento (BRPOP). Returns (nil, nil)
// when nothing arrived within the block window.
func (q *RedisQueue) Pop(ctx context.Context) (*processor.Job, error) {
	res, err := q.rdb.BRPop(ctx, popBlock, q.queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}

	var job processor.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Len reports how many jobs are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
