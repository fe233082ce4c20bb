package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/scheduler"
	"github.com/chiahung/remibot/internal/store"
)

// Scheduler is the armed-job surface the controller re-arms through.
type Scheduler interface {
	Arm(job scheduler.Job) error
	Disarm(jobID string)
}

// Sender delivers a notification to the reminder's target conversation.
type Sender interface {
	Send(ctx context.Context, n dispatch.Notification) error
}

// Controller reacts to fired triggers. For plain one-offs it marks the
// occurrence fired; for recurring reminders it only notifies; for priority
// reminders it runs the bounded repeat-until-confirmed loop.
type Controller struct {
	store  *store.Store
	sched  Scheduler
	sender Sender
	tiers  Tiers
	logger *logger.Logger
	now    func() time.Time
}

// New creates a controller.
func New(st *store.Store, sched Scheduler, sender Sender, tiers Tiers, log *logger.Logger) *Controller {
	return &Controller{
		store:  st,
		sched:  sched,
		sender: sender,
		tiers:  tiers,
		logger: log,
		now:    time.Now,
	}
}

// HandleFire processes one fired trigger for the given reminder.
// Reminder-missing and already-fired are normal branches here, never
// errors: both arise from benign races between firing and deletion.
func (c *Controller) HandleFire(ctx context.Context, reminderID int64) error {
	r, err := c.store.Get(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("handle fire for reminder %d: %w", reminderID, err)
	}

	if r == nil {
		// Deleted before firing. Clear any stray trigger and stop.
		c.sched.Disarm(scheduler.JobID(scheduler.KindOneOff, reminderID))
		c.sched.Disarm(scheduler.JobID(scheduler.KindRecurring, reminderID))
		c.logger.Warn("fired trigger for missing reminder",
			logger.Field{Key: "reminder_id", Value: reminderID})
		return nil
	}

	switch {
	case r.IsRecurring():
		return c.fireRecurring(ctx, r)
	case r.Priority > 0:
		return c.firePriority(ctx, r)
	default:
		return c.fireOneOff(ctx, r)
	}
}

// fireRecurring notifies and leaves the trigger armed; the recurring rule
// itself produces the next occurrence.
func (c *Controller) fireRecurring(ctx context.Context, r *store.Reminder) error {
	return c.sender.Send(ctx, dispatch.Notification{
		Target:     r.Target,
		TargetKind: r.TargetKind,
		Kind:       dispatch.KindReminder,
		Text:       renderReminder(r),
	})
}

// fireOneOff handles a plain one-off occurrence.
func (c *Controller) fireOneOff(ctx context.Context, r *store.Reminder) error {
	if r.Fired {
		// Lost disarm race: the occurrence already notified.
		c.logger.Debug("skipping already-fired reminder",
			logger.Field{Key: "reminder_id", Value: r.ID})
		return nil
	}

	if err := c.sender.Send(ctx, dispatch.Notification{
		Target:     r.Target,
		TargetKind: r.TargetKind,
		Kind:       dispatch.KindReminder,
		Text:       renderReminder(r),
		Buttons:    snoozeButtons(r.ID),
	}); err != nil {
		return err
	}

	if _, err := c.store.SetFired(ctx, r.ID); err != nil {
		return fmt.Errorf("mark reminder %d fired: %w", r.ID, err)
	}
	c.sched.Disarm(scheduler.JobID(scheduler.KindOneOff, r.ID))
	return nil
}

// firePriority sends an escalation notification and either re-arms the
// next attempt or, when the repeat budget is exhausted, deletes the
// reminder outright.
func (c *Controller) firePriority(ctx context.Context, r *store.Reminder) error {
	tier, ok := c.tiers.Lookup(r.Priority)
	if !ok {
		return c.fireOneOff(ctx, r)
	}

	if err := c.sender.Send(ctx, dispatch.Notification{
		Target:     r.Target,
		TargetKind: r.TargetKind,
		Kind:       dispatch.KindEscalation,
		Severity:   tier.Severity,
		Text:       renderEscalation(r),
		Buttons:    confirmButtons(r.ID),
	}); err != nil {
		return err
	}

	if r.RepeatsRemaining <= 0 {
		// Budget exhausted: the final nudge above was the last one.
		c.sched.Disarm(scheduler.JobID(scheduler.KindOneOff, r.ID))
		if _, err := c.store.Delete(ctx, r.ID, r.Creator); err != nil {
			return fmt.Errorf("delete exhausted reminder %d: %w", r.ID, err)
		}
		c.logger.Info("priority escalation exhausted",
			logger.Field{Key: "reminder_id", Value: r.ID},
			logger.Field{Key: "priority", Value: r.Priority})
		return nil
	}

	remaining, err := c.store.DecrementRepeats(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("decrement repeats for reminder %d: %w", r.ID, err)
	}

	next := c.now().Add(tier.Interval)
	if _, err := c.store.SetNextFire(ctx, r.ID, &next); err != nil {
		return fmt.Errorf("set next fire for reminder %d: %w", r.ID, err)
	}
	if err := c.sched.Arm(scheduler.OneOffJob(r.ID, next)); err != nil {
		// The row already carries next_fire_at, so recovery re-arms it.
		c.logger.Error("failed to re-arm escalation", err,
			logger.Field{Key: "reminder_id", Value: r.ID})
		return err
	}

	c.logger.Debug("escalation re-armed",
		logger.Field{Key: "reminder_id", Value: r.ID},
		logger.Field{Key: "remaining", Value: remaining},
		logger.Field{Key: "next_fire", Value: next.Format(time.RFC3339)})
	return nil
}

// Confirm acknowledges a priority reminder, ending its escalation loop
// regardless of the remaining repeat budget. Unauthorized or already-gone
// reminders report not-found, a normal outcome.
func (c *Controller) Confirm(ctx context.Context, reminderID int64, requester string) (bool, error) {
	c.sched.Disarm(scheduler.JobID(scheduler.KindOneOff, reminderID))

	res, err := c.store.Delete(ctx, reminderID, requester)
	if err != nil {
		return false, fmt.Errorf("confirm reminder %d: %w", reminderID, err)
	}
	if !res.OK {
		return false, nil
	}

	c.logger.Info("reminder confirmed",
		logger.Field{Key: "reminder_id", Value: reminderID},
		logger.Field{Key: "requester", Value: requester})
	return true, nil
}

// Snooze re-arms a fired one-off at a new instant. The same reminder row
// carries the new occurrence; no new reminder is created. Only the
// creator's own plain one-offs are snoozable: a recurring rule produces
// its own next occurrence and a priority loop re-arms itself, so both
// report not-found, as does an unauthorized requester.
func (c *Controller) Snooze(ctx context.Context, reminderID int64, requester string, until time.Time) (bool, error) {
	if !until.After(c.now()) {
		return false, fmt.Errorf("snooze time %s is in the past", until.Format(time.RFC3339))
	}

	r, err := c.store.Get(ctx, reminderID)
	if err != nil {
		return false, fmt.Errorf("snooze reminder %d: %w", reminderID, err)
	}
	if r == nil || r.Creator != requester || r.IsRecurring() || r.Priority > 0 {
		return false, nil
	}

	ok, err := c.store.Reschedule(ctx, reminderID, until)
	if err != nil {
		return false, fmt.Errorf("snooze reminder %d: %w", reminderID, err)
	}
	if !ok {
		return false, nil
	}

	if err := c.sched.Arm(scheduler.OneOffJob(reminderID, until)); err != nil {
		return false, err
	}

	c.logger.Info("reminder snoozed",
		logger.Field{Key: "reminder_id", Value: reminderID},
		logger.Field{Key: "until", Value: until.Format(time.RFC3339)})
	return true, nil
}
