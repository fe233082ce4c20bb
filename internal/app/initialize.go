package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chiahung/remibot/internal/channels/telegram"
	"github.com/chiahung/remibot/internal/commands"
	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/escalation"
	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/retry"
	"github.com/chiahung/remibot/internal/scheduler"
	"github.com/chiahung/remibot/internal/session"
	"github.com/chiahung/remibot/internal/store"
	"github.com/chiahung/remibot/internal/workers"
)

const metricsNamespace = "remibot"

// Initialize builds and starts every component. The scheduler recovers
// its armed-job set from the store as the final step, so triggers missed
// while the process was down catch up immediately.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already started")
	}
	a.ctx, a.cancel = context.WithCancel(ctx)

	retryCfg := retry.Config{
		MaxAttempts: a.config.Storage.RetryMaxAttempts,
		Backoff:     time.Duration(a.config.Storage.RetryBackoffMS) * time.Millisecond,
	}

	st, err := store.Open(a.config.Storage.Path, a.logger, retryCfg)
	if err != nil {
		return fmt.Errorf("open reminder store: %w", err)
	}
	a.store = st

	loc, err := time.LoadLocation(a.config.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("load scheduler timezone %q: %w", a.config.Scheduler.Timezone, err)
	}

	var audit *scheduler.Audit
	if a.config.Scheduler.AuditPath != "" {
		audit, err = scheduler.NewAudit(a.config.Scheduler.AuditPath)
		if err != nil {
			return fmt.Errorf("create armed-job audit: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	workerMetrics := workers.InitMetrics(metricsNamespace, reg)
	dispatchMetrics := dispatch.InitMetrics(metricsNamespace, reg)

	// The pool executor resolves the escalation controller at fire time;
	// the controller is built after the scheduler it re-arms through.
	a.pool = workers.NewPool(a.config.Workers.PoolSize, a.config.Workers.QueueSize,
		a.executeTask, a.logger, workerMetrics)

	grace := time.Duration(a.config.Scheduler.GraceSeconds) * time.Second
	a.sched = scheduler.New(st, a.pool, loc, grace, audit, a.logger)

	a.sessions = session.NewManager()
	tiers := escalation.TiersFromConfig(a.config.Escalation)

	var gateway dispatch.Gateway
	if a.config.Channels.Telegram.Enabled {
		conn, err := telegram.New(a.config.Channels.Telegram, routerHandler{a}, a.logger)
		if err != nil {
			return fmt.Errorf("create telegram connector: %w", err)
		}
		a.telegram = conn
		gateway = conn
	} else {
		gateway = logGateway{a.logger}
	}

	a.dispatcher = dispatch.New(gateway, a.logger, retryCfg, dispatchMetrics)
	a.escalation = escalation.New(st, a.sched, a.dispatcher, tiers, a.logger)
	a.router = commands.New(st, a.sched, a.escalation, a.sessions,
		a.dispatcher, tiers, loc, a.logger)

	a.pool.Start()
	if err := a.sched.Start(a.ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := a.sched.Recover(a.ctx); err != nil {
		return fmt.Errorf("recover armed jobs: %w", err)
	}

	if a.telegram != nil {
		go func() {
			if err := a.telegram.Listen(a.ctx); err != nil {
				a.logger.Error("telegram listener stopped", err)
			}
		}()
	}

	if a.config.Metrics.Enabled {
		a.startMetricsServer(reg)
	}

	a.started = true
	return nil
}

// executeTask runs fired-job callbacks on the worker pool.
func (a *App) executeTask(ctx context.Context, task workers.Task) error {
	switch task.Type {
	case scheduler.TaskTypeFire:
		reminderID, ok := task.Payload.(int64)
		if !ok {
			return fmt.Errorf("fire task %s has payload %T, want int64", task.ID, task.Payload)
		}
		return a.escalation.HandleFire(ctx, reminderID)
	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
}

// startMetricsServer exposes /metrics and /healthz.
func (a *App) startMetricsServer(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	a.metricsServer = &http.Server{
		Addr:              a.config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics server listening",
			logger.Field{Key: "addr", Value: a.config.Metrics.Addr})
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", err)
		}
	}()
}

// routerHandler adapts the App's router for the Telegram connector. It
// resolves the router late so the connector can be built before it.
type routerHandler struct{ app *App }

func (h routerHandler) Handle(ctx context.Context, ev commands.Event) error {
	return h.app.router.Handle(ctx, ev)
}

// logGateway is the delivery fallback when no channel is enabled;
// notifications land in the log instead of a chat.
type logGateway struct{ logger *logger.Logger }

func (g logGateway) Name() string { return "log" }

func (g logGateway) Push(ctx context.Context, n dispatch.Notification) error {
	g.logger.Info("notification",
		logger.Field{Key: "target", Value: n.Target},
		logger.Field{Key: "kind", Value: string(n.Kind)},
		logger.Field{Key: "text", Value: n.Text})
	return nil
}
