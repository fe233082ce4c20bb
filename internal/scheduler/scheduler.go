package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/store"
	"github.com/chiahung/remibot/internal/workers"
)

// TaskTypeFire is the worker task type for fired jobs. The task payload is
// the reminder id (int64).
const TaskTypeFire = "fire"

// Store is the subset of the reminder store the scheduler needs for
// recovery.
type Store interface {
	ListRecurring(ctx context.Context) ([]*store.Reminder, error)
	ListPendingOneOff(ctx context.Context) ([]*store.Reminder, error)
}

// Pool is the worker pool interface fired callbacks are submitted to.
type Pool interface {
	Submit(task workers.Task) error
}

// Scheduler manages the armed-job set. Arm and Disarm are safe to call
// concurrently with callback execution; a mutex serializes mutation of the
// armed set so no two Arm calls for the same job id can interleave.
type Scheduler struct {
	store  Store
	pool   Pool
	logger *logger.Logger
	loc    *time.Location
	grace  time.Duration
	audit  *Audit // optional armed-set audit trail, never load-bearing

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	jobs    map[string]Job
	timers  map[string]*time.Timer
	entries map[string]cron.EntryID
}

// New creates a scheduler. Recurring triggers are evaluated in loc; grace
// is the window past the due instant still treated as on time.
func New(st Store, pool Pool, loc *time.Location, grace time.Duration, audit *Audit, log *logger.Logger) *Scheduler {
	return &Scheduler{
		store:   st,
		pool:    pool,
		logger:  log,
		loc:     loc,
		grace:   grace,
		audit:   audit,
		cron:    cron.New(cron.WithLocation(loc)),
		jobs:    make(map[string]Job),
		timers:  make(map[string]*time.Timer),
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the cron runner and the scheduler's lifecycle context.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started",
		logger.Field{Key: "timezone", Value: s.loc.String()})

	go func() {
		<-s.ctx.Done()
		s.cron.Stop()
		s.logger.Info("scheduler stopped")
	}()

	return nil
}

// Stop stops the scheduler and disables all armed triggers.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("scheduler not started")
	}
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.cancel()
	s.started = false
	return nil
}

// Arm arms a job. Calling Arm with the same job id replaces any existing
// armed job for that id; this is how re-arming after a retry or a snooze
// works.
func (s *Scheduler) Arm(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked(job.ID)

	switch job.Kind {
	case KindOneOff:
		delay := time.Until(job.At)
		if delay < 0 {
			// Missed while the process was down: catch-up fire promptly,
			// exactly once.
			delay = 0
		}
		job := job
		s.timers[job.ID] = time.AfterFunc(delay, func() {
			s.fireOneOff(job)
		})

	case KindRecurring:
		job := job
		entryID, err := s.cron.AddFunc(job.cronSpec(), func() {
			s.submitFire(job)
		})
		if err != nil {
			return fmt.Errorf("arm recurring job %s: %w", job.ID, err)
		}
		s.entries[job.ID] = entryID

	default:
		return fmt.Errorf("arm job %s: unknown kind %q", job.ID, job.Kind)
	}

	s.jobs[job.ID] = job
	s.persistLocked()

	s.logger.Debug("job armed",
		logger.Field{Key: "job_id", Value: job.ID},
		logger.Field{Key: "kind", Value: string(job.Kind)})
	return nil
}

// Disarm removes an armed job if present. Disarming an absent job is a
// no-op, never an error: a job may already have fired or been removed by a
// racing delete.
func (s *Scheduler) Disarm(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disarmLocked(jobID) {
		s.persistLocked()
		s.logger.Debug("job disarmed", logger.Field{Key: "job_id", Value: jobID})
	}
}

func (s *Scheduler) disarmLocked(jobID string) bool {
	_, exists := s.jobs[jobID]
	if timer, ok := s.timers[jobID]; ok {
		timer.Stop()
		delete(s.timers, jobID)
	}
	if entryID, ok := s.entries[jobID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, jobID)
	}
	delete(s.jobs, jobID)
	return exists
}

// IsArmed reports whether a job with the given id is currently armed.
func (s *Scheduler) IsArmed(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

// Armed returns the sorted ids of all armed jobs.
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Recover rebuilds the armed set from the reminder store: every recurring
// reminder and every unfired one-off that still has a fire time is armed
// unless its job id is already present. Overdue one-offs are armed with
// zero delay so the missed occurrence catch-up fires exactly once.
// Calling Recover twice without intervening store mutation yields the same
// armed set as calling it once.
func (s *Scheduler) Recover(ctx context.Context) error {
	recurring, err := s.store.ListRecurring(ctx)
	if err != nil {
		return fmt.Errorf("recover: list recurring: %w", err)
	}
	pending, err := s.store.ListPendingOneOff(ctx)
	if err != nil {
		return fmt.Errorf("recover: list pending one-off: %w", err)
	}

	armed := 0
	for _, r := range recurring {
		if r.Recurrence == nil {
			continue
		}
		job := RecurringJob(r.ID, *r.Recurrence)
		if s.IsArmed(job.ID) {
			continue
		}
		if err := s.Arm(job); err != nil {
			s.logger.Error("failed to re-arm recurring reminder", err,
				logger.Field{Key: "reminder_id", Value: r.ID})
			continue
		}
		armed++
	}

	for _, r := range pending {
		if r.NextFireAt == nil {
			continue
		}
		job := OneOffJob(r.ID, *r.NextFireAt)
		if s.IsArmed(job.ID) {
			continue
		}
		if err := s.Arm(job); err != nil {
			s.logger.Error("failed to re-arm one-off reminder", err,
				logger.Field{Key: "reminder_id", Value: r.ID})
			continue
		}
		armed++
	}

	s.logger.Info("recovery complete",
		logger.Field{Key: "recurring", Value: len(recurring)},
		logger.Field{Key: "pending_oneoff", Value: len(pending)},
		logger.Field{Key: "armed", Value: armed})
	return nil
}

// fireOneOff runs when a one-off timer elapses. The trigger is spent, so
// the job leaves the armed set before the callback is handed to the pool.
func (s *Scheduler) fireOneOff(job Job) {
	s.mu.Lock()
	// Tolerate the race with Disarm: if the job is gone, a delete won.
	if _, ok := s.jobs[job.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, job.ID)
	delete(s.jobs, job.ID)
	s.persistLocked()
	s.mu.Unlock()

	if lateness := time.Since(job.At); lateness > s.grace {
		s.logger.Warn("catch-up fire past grace window",
			logger.Field{Key: "job_id", Value: job.ID},
			logger.Field{Key: "late_by", Value: lateness.String()})
	}

	s.submitFire(job)
}

// submitFire hands a fired job to the worker pool. A submit failure is
// reported here and not retried; the reminder row stays in a state the
// next Recover will pick up.
func (s *Scheduler) submitFire(job Job) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	task := workers.Task{
		ID:      fmt.Sprintf("fire_%s_%s", job.ID, uuid.NewString()),
		Type:    TaskTypeFire,
		Payload: job.ReminderID,
		Context: ctx,
	}
	if err := s.pool.Submit(task); err != nil {
		s.logger.Error("failed to submit fired job", err,
			logger.Field{Key: "job_id", Value: job.ID})
	}
}

// persistLocked writes the armed set to the audit file when configured.
// Audit failures are logged only; the store remains the source of truth.
func (s *Scheduler) persistLocked() {
	if s.audit == nil {
		return
	}
	records := make([]AuditRecord, 0, len(s.jobs))
	for _, job := range s.jobs {
		rec := AuditRecord{ID: job.ID, Kind: string(job.Kind), ReminderID: job.ReminderID}
		if job.Kind == KindOneOff {
			at := job.At
			rec.FireAt = &at
		} else {
			rec.Rule = job.Rule.String()
		}
		records = append(records, rec)
	}
	if err := s.audit.Save(records); err != nil {
		s.logger.Error("failed to persist armed-job audit", err)
	}
}
