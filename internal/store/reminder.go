// Package store provides the durable reminder repository backed by SQLite.
// It owns the Reminder data model and the recurrence rule wire format.
package store

import (
	"fmt"
	"strings"
	"time"
)

// TargetKind identifies the kind of delivery destination.
type TargetKind string

const (
	TargetUser  TargetKind = "user"
	TargetGroup TargetKind = "group"
	TargetRoom  TargetKind = "room"
)

// Reminder is the durable record describing what to say, to whom, and when.
// A reminder is exactly one of one-off (OccursAt set, Recurrence nil) or
// recurring (Recurrence set, OccursAt nil and Fired never used).
type Reminder struct {
	ID               int64
	Creator          string
	Target           string
	TargetKind       TargetKind
	DisplayName      string
	Content          string
	OccursAt         *time.Time  // nominal event moment, nil for recurring
	NextFireAt       *time.Time  // next notification moment, nil = do not schedule
	Fired            bool        // one-off only: the single occurrence has notified
	Recurrence       *Recurrence // nil for one-off
	Priority         int         // 0 = none, otherwise escalation tier 1..3
	RepeatsRemaining int         // priority retries left, counts down per fire
	CreatedAt        time.Time
}

// IsRecurring reports whether the reminder has a recurrence rule.
func (r *Reminder) IsRecurring() bool {
	return r.Recurrence != nil
}

// DeleteResult is the outcome of an owner-checked delete.
// OK is false both when the reminder does not exist and when the requester
// is not the creator, so non-owners cannot probe for existence.
type DeleteResult struct {
	OK           bool
	WasRecurring bool
}

// weekdayCodes is the canonical Monday-first ordering used by the rule
// wire format and the cron day-of-week field.
var weekdayCodes = []struct {
	code string
	day  time.Weekday
}{
	{"MON", time.Monday},
	{"TUE", time.Tuesday},
	{"WED", time.Wednesday},
	{"THU", time.Thursday},
	{"FRI", time.Friday},
	{"SAT", time.Saturday},
	{"SUN", time.Sunday},
}

// Recurrence is a weekday set plus a time of day, evaluated in the
// scheduler's configured local zone.
type Recurrence struct {
	Weekdays []time.Weekday // canonical Monday-first order, no duplicates
	Hour     int
	Minute   int
}

// String renders the rule in its wire form, e.g. "MON,WED|18:30".
func (r Recurrence) String() string {
	return r.DayCodes() + "|" + fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// DayCodes returns the comma-joined weekday codes in canonical order,
// e.g. "MON,WED". The same string is valid as a cron day-of-week field.
func (r Recurrence) DayCodes() string {
	set := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, d := range r.Weekdays {
		set[d] = true
	}
	codes := make([]string, 0, len(set))
	for _, wc := range weekdayCodes {
		if set[wc.day] {
			codes = append(codes, wc.code)
		}
	}
	return strings.Join(codes, ",")
}

// ParseWeekday resolves a three-letter weekday code such as "MON".
func ParseWeekday(code string) (time.Weekday, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, wc := range weekdayCodes {
		if wc.code == code {
			return wc.day, true
		}
	}
	return 0, false
}

// WeekdayCode renders a weekday as its three-letter code.
func WeekdayCode(day time.Weekday) string {
	for _, wc := range weekdayCodes {
		if wc.day == day {
			return wc.code
		}
	}
	return ""
}

// Contains reports whether the rule includes the given weekday.
func (r Recurrence) Contains(day time.Weekday) bool {
	for _, d := range r.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// ParseRecurrence parses the wire form produced by String.
func ParseRecurrence(s string) (Recurrence, error) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return Recurrence{}, fmt.Errorf("invalid recurrence rule %q: missing time separator", s)
	}

	byCode := make(map[string]time.Weekday, len(weekdayCodes))
	for _, wc := range weekdayCodes {
		byCode[wc.code] = wc.day
	}

	seen := make(map[time.Weekday]bool)
	var days []time.Weekday
	for _, code := range strings.Split(parts[0], ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		day, ok := byCode[code]
		if !ok {
			return Recurrence{}, fmt.Errorf("invalid recurrence rule %q: unknown weekday %q", s, code)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return Recurrence{}, fmt.Errorf("invalid recurrence rule %q: empty weekday set", s)
	}

	var hour, minute int
	if _, err := fmt.Sscanf(parts[1], "%d:%d", &hour, &minute); err != nil {
		return Recurrence{}, fmt.Errorf("invalid recurrence rule %q: bad time of day: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Recurrence{}, fmt.Errorf("invalid recurrence rule %q: time of day out of range", s)
	}

	rule := Recurrence{Weekdays: canonicalOrder(days), Hour: hour, Minute: minute}
	return rule, nil
}

func canonicalOrder(days []time.Weekday) []time.Weekday {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	out := make([]time.Weekday, 0, len(set))
	for _, wc := range weekdayCodes {
		if set[wc.day] {
			out = append(out, wc.day)
		}
	}
	return out
}

// NewRecurrence builds a rule from a weekday set, normalizing the order.
func NewRecurrence(days []time.Weekday, hour, minute int) (Recurrence, error) {
	if len(days) == 0 {
		return Recurrence{}, fmt.Errorf("recurrence requires at least one weekday")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Recurrence{}, fmt.Errorf("recurrence time of day out of range: %02d:%02d", hour, minute)
	}
	return Recurrence{Weekdays: canonicalOrder(days), Hour: hour, Minute: minute}, nil
}
