// Package app wires the reminder engine together: store, scheduler,
// worker pool, escalation controller, command router, and the Telegram
// channel, with lifecycle management across all of them.
package app

import (
	"context"
	"net/http"
	"sync"

	"github.com/chiahung/remibot/internal/channels/telegram"
	"github.com/chiahung/remibot/internal/commands"
	"github.com/chiahung/remibot/internal/config"
	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/escalation"
	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/scheduler"
	"github.com/chiahung/remibot/internal/session"
	"github.com/chiahung/remibot/internal/store"
	"github.com/chiahung/remibot/internal/workers"
)

// App holds all components and manages their lifecycle.
type App struct {
	config *config.Config
	logger *logger.Logger

	store      *store.Store
	sched      *scheduler.Scheduler
	pool       *workers.Pool
	dispatcher *dispatch.Dispatcher
	escalation *escalation.Controller
	sessions   *session.Manager
	router     *commands.Router
	telegram   *telegram.Connector

	metricsServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New creates an App. Components are built in Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Run starts the application and blocks until the context is cancelled,
// then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	a.logger.Info("remibot is running")
	<-ctx.Done()

	return a.Shutdown()
}
