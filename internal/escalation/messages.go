package escalation

import (
	"fmt"

	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/store"
)

func renderReminder(r *store.Reminder) string {
	name := r.DisplayName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hey %s, reminder: %s", name, r.Content)
}

func renderEscalation(r *store.Reminder) string {
	name := r.DisplayName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hey %s, this is important and still unconfirmed: %s\nReply when done.", name, r.Content)
}

func snoozeButtons(id int64) []dispatch.Button {
	return []dispatch.Button{
		{Label: "Snooze 5 min", Data: fmt.Sprintf("action=snooze&id=%d", id)},
		{Label: "Done", Data: fmt.Sprintf("action=confirm&id=%d", id)},
	}
}

// confirmButtons carries only the stop acknowledgment; escalating
// reminders cannot be snoozed.
func confirmButtons(id int64) []dispatch.Button {
	return []dispatch.Button{
		{Label: "Got it, stop", Data: fmt.Sprintf("action=confirm&id=%d", id)},
	}
}
