// Package commands turns inbound chat events into reminder operations.
// The router owns the boundary between one-shot commands, multi-step
// wizard sessions, and button postbacks.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/escalation"
	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/scheduler"
	"github.com/chiahung/remibot/internal/session"
	"github.com/chiahung/remibot/internal/store"
)

// snoozeDefault is the lead applied by the quick snooze button.
const snoozeDefault = 5 * time.Minute

// Event is one inbound chat event, already stripped of transport detail.
// Exactly one of Text and Postback is set.
type Event struct {
	UserID      string
	Target      string
	TargetKind  store.TargetKind
	DisplayName string
	Text        string
	Postback    string
}

// Scheduler is the armed-job surface the router arms new reminders on.
type Scheduler interface {
	Arm(job scheduler.Job) error
	Disarm(jobID string)
}

// Escalator handles confirm and snooze for fired reminders.
type Escalator interface {
	Confirm(ctx context.Context, reminderID int64, requester string) (bool, error)
	Snooze(ctx context.Context, reminderID int64, requester string, until time.Time) (bool, error)
}

// Sender delivers replies back to the conversation.
type Sender interface {
	Send(ctx context.Context, n dispatch.Notification) error
}

// Router routes inbound events. A cancel command wins over everything;
// an active session intercepts free text next; one-shot commands and
// postbacks handle the rest.
type Router struct {
	store    *store.Store
	sched    Scheduler
	esc      Escalator
	sessions *session.Manager
	sender   Sender
	tiers    escalation.Tiers
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// New creates a router.
func New(st *store.Store, sched Scheduler, esc Escalator, sessions *session.Manager,
	sender Sender, tiers escalation.Tiers, loc *time.Location, log *logger.Logger) *Router {
	return &Router{
		store:    st,
		sched:    sched,
		esc:      esc,
		sessions: sessions,
		sender:   sender,
		tiers:    tiers,
		loc:      loc,
		logger:   log,
		now:      time.Now,
	}
}

// Handle processes one inbound event.
func (rt *Router) Handle(ctx context.Context, ev Event) error {
	if ev.Postback != "" {
		return rt.handlePostback(ctx, ev)
	}

	text := strings.TrimSpace(ev.Text)
	if cancelWord.MatchString(text) {
		rt.sessions.Clear(ev.UserID)
		return rt.reply(ctx, ev, replyCancelled, nil)
	}

	if s := rt.sessions.Get(ev.UserID); s != nil {
		return rt.handleSessionText(ctx, ev, s, text)
	}

	switch {
	case remindPattern.MatchString(text):
		m := remindPattern.FindStringSubmatch(text)
		return rt.createOneShot(ctx, ev, m[1], m[2])

	case priorityPattern.MatchString(text):
		m := priorityPattern.FindStringSubmatch(text)
		return rt.startPriorityWizard(ctx, ev, m[1], m[2])

	case recurringWord.MatchString(text):
		s := session.NewRecurring()
		rt.sessions.Put(ev.UserID, s)
		return rt.reply(ctx, ev, "Pick the weekdays, then a time.", weekdayKeyboard(s))

	case listWord.MatchString(text):
		return rt.handleList(ctx, ev)

	case deletePattern.MatchString(text):
		m := deletePattern.FindStringSubmatch(text)
		return rt.handleDelete(ctx, ev, m[1])

	case editPattern.MatchString(text):
		m := editPattern.FindStringSubmatch(text)
		return rt.startEditFlow(ctx, ev, m[1])

	case snoozePattern.MatchString(text):
		m := snoozePattern.FindStringSubmatch(text)
		return rt.handleSnoozeCommand(ctx, ev, m[1], m[2])

	default:
		return rt.reply(ctx, ev, replyHelp, nil)
	}
}

// createOneShot commits a plain one-off reminder from a single command.
func (rt *Router) createOneShot(ctx context.Context, ev Event, when, content string) error {
	at, err := parseLocalTime(when, rt.loc)
	if err != nil {
		return rt.reply(ctx, ev, err.Error(), nil)
	}
	if !at.After(rt.now()) {
		return rt.reply(ctx, ev, replyPastFire, nil)
	}

	atUTC := at.UTC()
	id, err := rt.store.Create(ctx, &store.Reminder{
		Creator:     ev.UserID,
		Target:      ev.Target,
		TargetKind:  ev.TargetKind,
		DisplayName: ev.DisplayName,
		Content:     strings.TrimSpace(content),
		OccursAt:    &atUTC,
		NextFireAt:  &atUTC,
	})
	if err != nil {
		rt.logger.Error("failed to create reminder", err,
			logger.Field{Key: "user_id", Value: ev.UserID})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	if err := rt.sched.Arm(scheduler.OneOffJob(id, atUTC)); err != nil {
		rt.logger.Error("failed to arm reminder", err,
			logger.Field{Key: "reminder_id", Value: id})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	return rt.reply(ctx, ev,
		fmt.Sprintf("Reminder #%d set for %s. Want an early heads-up?", id, at.Format("2006-01-02 15:04")),
		earlyOffsetKeyboardFor(id))
}

func (rt *Router) handleList(ctx context.Context, ev Event) error {
	reminders, err := rt.store.ListByCreator(ctx, ev.UserID)
	if err != nil {
		rt.logger.Error("failed to list reminders", err,
			logger.Field{Key: "user_id", Value: ev.UserID})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	return rt.reply(ctx, ev, renderList(reminders, rt.loc), nil)
}

func (rt *Router) handleDelete(ctx context.Context, ev Event, rawID string) error {
	id, _ := strconv.ParseInt(rawID, 10, 64)

	res, err := rt.store.Delete(ctx, id, ev.UserID)
	if err != nil {
		rt.logger.Error("failed to delete reminder", err,
			logger.Field{Key: "reminder_id", Value: id})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if !res.OK {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}

	if res.WasRecurring {
		rt.sched.Disarm(scheduler.JobID(scheduler.KindRecurring, id))
	} else {
		rt.sched.Disarm(scheduler.JobID(scheduler.KindOneOff, id))
	}
	return rt.reply(ctx, ev, fmt.Sprintf("Reminder #%d deleted.", id), nil)
}

func (rt *Router) startEditFlow(ctx context.Context, ev Event, rawID string) error {
	id, _ := strconv.ParseInt(rawID, 10, 64)

	r, err := rt.store.Get(ctx, id)
	if err != nil {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if r == nil || r.Creator != ev.UserID {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}

	rt.sessions.Put(ev.UserID, session.NewEdit(id, r.Content))
	return rt.reply(ctx, ev, replyAskEditText, nil)
}

func (rt *Router) handleSnoozeCommand(ctx context.Context, ev Event, rawID, when string) error {
	id, _ := strconv.ParseInt(rawID, 10, 64)
	until, err := parseLocalTime(when, rt.loc)
	if err != nil {
		return rt.reply(ctx, ev, err.Error(), nil)
	}
	if !until.After(rt.now()) {
		return rt.reply(ctx, ev, replyPastFire, nil)
	}

	ok, err := rt.esc.Snooze(ctx, id, ev.UserID, until.UTC())
	if err != nil {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if !ok {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}
	return rt.reply(ctx, ev,
		fmt.Sprintf("Reminder #%d snoozed until %s.", id, until.Format("2006-01-02 15:04")), nil)
}

func (rt *Router) reply(ctx context.Context, ev Event, text string, buttons []dispatch.Button) error {
	return rt.sender.Send(ctx, dispatch.Notification{
		Target:     ev.Target,
		TargetKind: ev.TargetKind,
		Kind:       dispatch.KindReply,
		Text:       text,
		Buttons:    buttons,
	})
}
