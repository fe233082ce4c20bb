// Package scheduler provides the trigger scheduler: an in-memory set of
// armed jobs, each bound to exactly one reminder, that fires a callback at
// the right wall-clock moment. The reminder store is the source of truth;
// the armed set is a derived cache rebuilt by Recover at process start.
package scheduler

import (
	"fmt"
	"time"

	"github.com/chiahung/remibot/internal/store"
)

// Kind distinguishes the two trigger variants.
type Kind string

const (
	// KindOneOff fires once at an absolute instant.
	KindOneOff Kind = "oneoff"
	// KindRecurring fires on every matching weekday/time-of-day in the
	// scheduler's local zone.
	KindRecurring Kind = "recurring"
)

// JobID derives the deterministic job identifier for a reminder. The same
// reminder always maps to the same id, which is what makes Arm a
// replace-if-exists operation.
func JobID(kind Kind, reminderID int64) string {
	return fmt.Sprintf("%s:%d", kind, reminderID)
}

// Job binds a reminder to its trigger.
type Job struct {
	ID         string
	Kind       Kind
	ReminderID int64
	At         time.Time        // one-off: absolute fire instant
	Rule       store.Recurrence // recurring: weekday set + time of day
}

// OneOffJob builds a one-off job for the reminder at the given instant.
func OneOffJob(reminderID int64, at time.Time) Job {
	return Job{
		ID:         JobID(KindOneOff, reminderID),
		Kind:       KindOneOff,
		ReminderID: reminderID,
		At:         at,
	}
}

// RecurringJob builds a recurring job for the reminder from its rule.
func RecurringJob(reminderID int64, rule store.Recurrence) Job {
	return Job{
		ID:         JobID(KindRecurring, reminderID),
		Kind:       KindRecurring,
		ReminderID: reminderID,
		Rule:       rule,
	}
}

// cronSpec renders the recurring rule as a standard 5-field cron
// expression, e.g. "30 18 * * MON,WED". The cron runner is constructed
// with the configured local zone, so weekday boundaries follow the
// local calendar rather than the storage zone.
func (j Job) cronSpec() string {
	return fmt.Sprintf("%d %d * * %s", j.Rule.Minute, j.Rule.Hour, j.Rule.DayCodes())
}
