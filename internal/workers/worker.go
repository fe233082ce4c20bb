package workers

import (
	"fmt"
	"time"

	"github.com/chiahung/remibot/internal/logger"
)

// worker is the main worker goroutine processing tasks from the queue.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugCtx(p.ctx, "worker started",
		logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case task := <-p.taskQueue:
			p.metrics.setQueueDepth(len(p.taskQueue))
			p.processTask(id, task)

		case <-p.ctx.Done():
			p.logger.DebugCtx(p.ctx, "worker stopping",
				logger.Field{Key: "worker_id", Value: id})
			return
		}
	}
}

// processTask executes a single task with panic recovery and metrics.
func (p *Pool) processTask(workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic recovered", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "worker_id", Value: workerID},
				logger.Field{Key: "task_id", Value: task.ID})
			p.metrics.taskDone("panic", 0)
		}
	}()

	execCtx := p.ctx
	if task.Context != nil {
		execCtx = task.Context
	}

	start := time.Now()
	err := p.executor(execCtx, task)
	duration := time.Since(start)

	if err != nil {
		p.metrics.taskDone("failed", duration)
		p.logger.Error("task failed", err,
			logger.Field{Key: "worker_id", Value: workerID},
			logger.Field{Key: "task_id", Value: task.ID},
			logger.Field{Key: "duration_ms", Value: duration.Milliseconds()})
		return
	}

	p.metrics.taskDone("completed", duration)
	p.logger.DebugCtx(p.ctx, "task processed",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "duration_ms", Value: duration.Milliseconds()})
}
