package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/session"
	"github.com/chiahung/remibot/internal/store"
)

const (
	replyCancelled     = "Okay, cancelled."
	replyHelp          = "Commands: remind <YYYY-MM-DD HH:MM> <text>, priority <YYYY-MM-DD HH:MM> <text>, recurring, list, edit <id>, delete <id>, snooze <id> <YYYY-MM-DD HH:MM>, cancel."
	replyNeedWeekday   = "Pick at least one weekday before choosing a time."
	replyAskContent    = "What should the reminder say?"
	replyAskEarly      = "How early should the first notification arrive?"
	replyAskTier       = "How urgent is this?"
	replyUseButtons    = "Please use the buttons to continue, or send cancel."
	replyTryAgain      = "Something went wrong, please try again."
	replyNotFound      = "No such reminder."
	replyPastFire      = "That notification time is already in the past."
	replyEmptyList     = "You have no reminders."
	replyAskEditText   = "Send the new text. Start with \"+\" to append to the current text."
	replyConfirmedDone = "Confirmed, escalation stopped."
)

// earlyOffsets is the fixed menu of lead times before a priority
// reminder's occurrence.
var earlyOffsets = []struct {
	Label   string
	Minutes int
}{
	{"10 minutes early", 10},
	{"30 minutes early", 30},
	{"1 day early", 1440},
	{"Right on time", 0},
}

func weekdayKeyboard(s *session.Session) []dispatch.Button {
	days := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	buttons := make([]dispatch.Button, 0, len(days)+3)
	for _, d := range days {
		code := store.WeekdayCode(d)
		label := code
		if s.Weekdays[d] {
			label = "✓ " + code
		}
		buttons = append(buttons, dispatch.Button{
			Label: label,
			Data:  "action=toggle_weekday&day=" + code,
		})
	}
	for _, tod := range []string{"09:00", "12:30", "18:30"} {
		buttons = append(buttons, dispatch.Button{
			Label: "at " + tod,
			Data:  "action=pick_time&time=" + tod,
		})
	}
	return buttons
}

func earlyOffsetKeyboard() []dispatch.Button {
	buttons := make([]dispatch.Button, 0, len(earlyOffsets))
	for _, o := range earlyOffsets {
		buttons = append(buttons, dispatch.Button{
			Label: o.Label,
			Data:  fmt.Sprintf("action=early_offset&minutes=%d", o.Minutes),
		})
	}
	return buttons
}

// earlyOffsetKeyboardFor carries the reminder id in each button so the
// offset applies to an already-committed one-off without a session.
func earlyOffsetKeyboardFor(id int64) []dispatch.Button {
	buttons := make([]dispatch.Button, 0, len(earlyOffsets))
	for _, o := range earlyOffsets {
		buttons = append(buttons, dispatch.Button{
			Label: o.Label,
			Data:  fmt.Sprintf("action=early_offset&id=%d&minutes=%d", id, o.Minutes),
		})
	}
	return buttons
}

func tierKeyboard() []dispatch.Button {
	return []dispatch.Button{
		{Label: "Critical", Data: "action=pick_tier&tier=3"},
		{Label: "Urgent", Data: "action=pick_tier&tier=2"},
		{Label: "Informational", Data: "action=pick_tier&tier=1"},
	}
}

// renderList formats the management view of a creator's reminders.
func renderList(reminders []*store.Reminder, loc *time.Location) string {
	if len(reminders) == 0 {
		return replyEmptyList
	}
	var b strings.Builder
	b.WriteString("Your reminders:\n")
	for _, r := range reminders {
		switch {
		case r.IsRecurring():
			fmt.Fprintf(&b, "#%d [%s] %s\n", r.ID, r.Recurrence.String(), r.Content)
		case r.OccursAt != nil:
			fmt.Fprintf(&b, "#%d [%s] %s\n", r.ID, r.OccursAt.In(loc).Format("2006-01-02 15:04"), r.Content)
		default:
			fmt.Fprintf(&b, "#%d %s\n", r.ID, r.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
