package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wasilibs/go-re2"
)

// One-shot command shapes. Matching is case-insensitive on the verb;
// anything that matches none of these falls through to the session (if
// one is active) or to the help reply.
var (
	remindPattern   = re2.MustCompile(`(?i)^remind(?:\s+me)?\s+(\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2})\s+(.+)$`)
	priorityPattern = re2.MustCompile(`(?i)^priority\s+(\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2})\s+(.+)$`)
	snoozePattern   = re2.MustCompile(`(?i)^snooze\s+(\d+)\s+(\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2})$`)
	deletePattern   = re2.MustCompile(`(?i)^delete\s+(\d+)$`)
	editPattern     = re2.MustCompile(`(?i)^edit\s+(\d+)$`)
	recurringWord   = re2.MustCompile(`(?i)^recurring$`)
	listWord        = re2.MustCompile(`(?i)^list$`)
	cancelWord      = re2.MustCompile(`(?i)^cancel$`)
	timeOfDay       = re2.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// appendMarker prefixes an edit reply that appends to the existing
// content instead of replacing it.
const appendMarker = "+"

// parseLocalTime parses "2006-01-02 15:04" in the given zone. Rejection
// happens before any store or scheduler mutation.
func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q, expected YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}

// parseTimeOfDay parses "18:30" into hour and minute.
func parseTimeOfDay(s string) (hour, minute int, ok bool) {
	m := timeOfDay.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	fmt.Sscanf(m[1], "%d", &hour)
	fmt.Sscanf(m[2], "%d", &minute)
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
