package workers

import (
	"context"
	"sync"

	"github.com/chiahung/remibot/internal/logger"
)

// Pool manages a fixed set of goroutine workers executing tasks from a
// bounded queue.
type Pool struct {
	taskQueue chan Task
	executor  Executor
	workers   int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *logger.Logger
	metrics   *Metrics
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a worker pool. The executor runs every submitted task.
func NewPool(workers, queueSize int, executor Executor, log *logger.Logger, metrics *Metrics) *Pool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		taskQueue: make(chan Task, queueSize),
		executor:  executor,
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log,
		metrics:   metrics,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting worker pool",
			logger.Field{Key: "workers", Value: p.workers},
			logger.Field{Key: "queue_size", Value: cap(p.taskQueue)})

		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Submit enqueues a task. It blocks if the queue is full and returns an
// error only when the pool is shutting down.
func (p *Pool) Submit(task Task) error {
	p.logger.DebugCtx(p.ctx, "task submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task_type", Value: task.Type})

	select {
	case p.taskQueue <- task:
		p.metrics.setQueueDepth(len(p.taskQueue))
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Stop shuts the pool down and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Info("worker pool stopped")
	})
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// QueueSize returns the number of tasks currently waiting.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}
