package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/metrics"
)

// TaskHandler runs one task. Errors are logged and counted, never retried by
// the pool itself.
type TaskHandler func(ctx context.Context, task Task) error

// WorkerPool drains a TaskQueue with a fixed number of goroutines.
type WorkerPool struct {
	queue       TaskQueue
	concurrency int
	timeout     time.Duration

	mu       sync.RWMutex
	handlers map[TaskKind]TaskHandler
	wg       sync.WaitGroup
}

func NewWorkerPool(queue TaskQueue, concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &WorkerPool{
		queue:       queue,
		concurrency: concurrency,
		timeout:     time.Minute,
		handlers:    make(map[TaskKind]TaskHandler),
	}
}

// Handle registers the handler for a task kind.
func (p *WorkerPool) Handle(kind TaskKind, h TaskHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until they have.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	logger.Info("Started %d task workers", p.concurrency)
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			logger.Error("Worker %d failed to dequeue task: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		p.dispatch(ctx, task)
	}
}

func (p *WorkerPool) dispatch(ctx context.Context, task Task) {
	p.mu.RLock()
	h, ok := p.handlers[task.Kind]
	p.mu.RUnlock()
	if !ok {
		logger.Warn("No handler for task kind %s (task %s)", task.Kind, task.ID)
		metrics.TasksProcessed.WithLabelValues(string(task.Kind), "unhandled").Inc()
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := safeRun(taskCtx, h, task); err != nil {
		logger.Error("Task %s (%s) failed: %v", task.ID, task.Kind, err)
		metrics.TasksProcessed.WithLabelValues(string(task.Kind), "error").Inc()
		return
	}
	metrics.TasksProcessed.WithLabelValues(string(task.Kind), "ok").Inc()
}

func safeRun(ctx context.Context, h TaskHandler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, task)
}

// enqueueTimeout bounds queueing of side effects once they are detached from
// the caller.
const enqueueTimeout = 5 * time.Second

// detach keeps ctx's values but not its cancellation, so tasks queued after
// a commit survive a client that hangs up.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
}

// enqueue submits a best-effort task. Failures are logged and counted; the
// caller never sees them.
func enqueue(ctx context.Context, q TaskQueue, kind TaskKind, payload interface{}) {
	task, err := NewTask(kind, payload)
	if err == nil {
		err = q.Enqueue(ctx, task)
	}
	if err != nil {
		logger.Error("Failed to enqueue %s task: %v", kind, err)
		metrics.TasksEnqueueFailed.WithLabelValues(string(kind)).Inc()
	}
}
