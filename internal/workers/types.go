// Package workers provides a bounded worker pool for background task
// execution. Fired scheduler jobs run here, decoupled from the inbound
// request path.
package workers

import (
	"context"
	"time"
)

// Task represents a unit of work to be executed by a worker.
type Task struct {
	ID      string          // unique task identifier
	Type    string          // task type, e.g. "fire"
	Payload any             // task payload
	Context context.Context // task-specific context for cancellation/timeout
}

// Executor is the task-specific execution logic injected into the pool.
type Executor func(ctx context.Context, task Task) error

// Defaults for pool configuration.
const (
	DefaultPoolSize  = 5
	DefaultQueueSize = 100
	DefaultTimeout   = 30 * time.Second
)
