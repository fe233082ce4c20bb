// Package dispatch delivers rendered notifications to chat channels. It
// owns no scheduling or escalation policy; it receives a fully formed
// notification, picks the gateway for the target kind, and reports the
// outcome.
package dispatch

import (
	"context"

	"github.com/chiahung/remibot/internal/store"
)

// Kind classifies an outbound notification.
type Kind string

const (
	// KindReminder is the initial fire of a reminder.
	KindReminder Kind = "reminder"
	// KindEscalation is a repeated nudge for an unconfirmed reminder.
	KindEscalation Kind = "escalation"
	// KindReply is a conversational response to the user.
	KindReply Kind = "reply"
)

// Severity grades escalation notifications for channel-side presentation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Button is one quick-reply action attached to a notification.
type Button struct {
	Label string
	// Data is the postback payload, e.g. "action=confirm&id=42".
	Data string
}

// Notification is a channel-agnostic outbound message.
type Notification struct {
	Target     string
	TargetKind store.TargetKind
	Kind       Kind
	Severity   Severity
	Text       string
	Buttons    []Button
}

// Gateway sends notifications over one concrete chat channel.
type Gateway interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// Push delivers a notification to the target conversation.
	Push(ctx context.Context, n Notification) error
}
