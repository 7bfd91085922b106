package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrQueueFull   = errors.New("task queue full")
	ErrQueueClosed = errors.New("task queue closed")
)

// TaskQueue carries post-commit tasks from request handlers to the worker
// pool. Delivery is at most once and unordered.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (Task, error)
}

// RedisQueue is a TaskQueue on a Redis list: LPUSH to enqueue, BRPOP to
// dequeue.
type RedisQueue struct {
	client *redis.Client
	key    string
	// pollTimeout bounds each BRPOP so that Dequeue notices ctx cancellation.
	pollTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:      client,
		key:         key,
		pollTimeout: 5 * time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("push task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, fmt.Errorf("pop task: %w", err)
		}
		// BRPOP answers [key, value].
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return Task{}, fmt.Errorf("decode task: %w", err)
		}
		return task, nil
	}
}

// Len reports how many tasks are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// MemoryQueue is the in-process fallback used when Redis is unavailable.
// Queued tasks are lost on restart.
type MemoryQueue struct {
	tasks chan Task
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{tasks: make(chan Task, capacity)}
}

// Enqueue never blocks; a full queue drops the task.
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return Task{}, ErrQueueClosed
		}
		return task, nil
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Len reports how many tasks are waiting.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}
