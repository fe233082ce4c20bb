package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/scheduler"
	"github.com/chiahung/remibot/internal/session"
	"github.com/chiahung/remibot/internal/store"
)

// handleSessionText routes free text while a wizard session is active.
// Stages that expect a button re-prompt without touching the accumulator.
func (rt *Router) handleSessionText(ctx context.Context, ev Event, s *session.Session, text string) error {
	switch s.Stage {
	case session.StageAwaitingContent:
		return rt.commitRecurring(ctx, ev, s, text)

	case session.StageAwaitingEditContent:
		return rt.commitEdit(ctx, ev, s, text)

	case session.StageCollectingRecurrence:
		return rt.reply(ctx, ev, replyUseButtons, weekdayKeyboard(s))

	case session.StageChoosingEarlyOffset:
		return rt.reply(ctx, ev, replyUseButtons, earlyOffsetKeyboard())

	case session.StageChoosingPriorityTier:
		return rt.reply(ctx, ev, replyUseButtons, tierKeyboard())

	default:
		rt.sessions.Clear(ev.UserID)
		return rt.reply(ctx, ev, replyHelp, nil)
	}
}

// handlePostback routes button presses, e.g. "action=toggle_weekday&day=MON".
func (rt *Router) handlePostback(ctx context.Context, ev Event) error {
	values, err := url.ParseQuery(ev.Postback)
	if err != nil {
		rt.logger.Warn("malformed postback",
			logger.Field{Key: "user_id", Value: ev.UserID},
			logger.Field{Key: "postback", Value: ev.Postback})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	switch values.Get("action") {
	case "toggle_weekday":
		return rt.toggleWeekday(ctx, ev, values.Get("day"))
	case "pick_time":
		return rt.pickTime(ctx, ev, values.Get("time"))
	case "early_offset":
		if rawID := values.Get("id"); rawID != "" {
			return rt.applyEarlyOffset(ctx, ev, rawID, values.Get("minutes"))
		}
		return rt.pickEarlyOffset(ctx, ev, values.Get("minutes"))
	case "pick_tier":
		return rt.pickTier(ctx, ev, values.Get("tier"))
	case "confirm":
		return rt.confirmPostback(ctx, ev, values.Get("id"))
	case "snooze":
		return rt.snoozePostback(ctx, ev, values.Get("id"))
	default:
		return rt.reply(ctx, ev, replyHelp, nil)
	}
}

// toggleWeekday flips one weekday and re-renders the same stage.
func (rt *Router) toggleWeekday(ctx context.Context, ev Event, code string) error {
	s := rt.sessions.Get(ev.UserID)
	if s == nil || s.Stage != session.StageCollectingRecurrence {
		return rt.reply(ctx, ev, replyHelp, nil)
	}

	day, ok := store.ParseWeekday(code)
	if !ok {
		return rt.reply(ctx, ev, replyUseButtons, weekdayKeyboard(s))
	}

	s.ToggleWeekday(day)
	rt.sessions.Put(ev.UserID, s)
	return rt.reply(ctx, ev, "Pick the weekdays, then a time.", weekdayKeyboard(s))
}

// pickTime closes the weekday stage; it requires a non-empty weekday set.
func (rt *Router) pickTime(ctx context.Context, ev Event, tod string) error {
	s := rt.sessions.Get(ev.UserID)
	if s == nil || s.Stage != session.StageCollectingRecurrence {
		return rt.reply(ctx, ev, replyHelp, nil)
	}

	if len(s.SelectedWeekdays()) == 0 {
		return rt.reply(ctx, ev, replyNeedWeekday, weekdayKeyboard(s))
	}

	hour, minute, ok := parseTimeOfDay(tod)
	if !ok {
		return rt.reply(ctx, ev, replyUseButtons, weekdayKeyboard(s))
	}

	s.Hour, s.Minute, s.HasTime = hour, minute, true
	s.Stage = session.StageAwaitingContent
	rt.sessions.Put(ev.UserID, s)
	return rt.reply(ctx, ev, replyAskContent, nil)
}

// commitRecurring writes the recurring reminder assembled by the wizard
// and arms its trigger. The session clears only after the store commit.
func (rt *Router) commitRecurring(ctx context.Context, ev Event, s *session.Session, content string) error {
	rule, err := store.NewRecurrence(s.SelectedWeekdays(), s.Hour, s.Minute)
	if err != nil {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	id, err := rt.store.Create(ctx, &store.Reminder{
		Creator:     ev.UserID,
		Target:      ev.Target,
		TargetKind:  ev.TargetKind,
		DisplayName: ev.DisplayName,
		Content:     strings.TrimSpace(content),
		Recurrence:  &rule,
	})
	if err != nil {
		rt.logger.Error("failed to create recurring reminder", err,
			logger.Field{Key: "user_id", Value: ev.UserID})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	if err := rt.sched.Arm(scheduler.RecurringJob(id, rule)); err != nil {
		rt.logger.Error("failed to arm recurring reminder", err,
			logger.Field{Key: "reminder_id", Value: id})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	rt.sessions.Clear(ev.UserID)
	return rt.reply(ctx, ev,
		fmt.Sprintf("Recurring reminder #%d set for %s.", id, rule.String()), nil)
}

// startPriorityWizard parses the embedded time and content, then walks the
// user through early-offset and tier selection.
func (rt *Router) startPriorityWizard(ctx context.Context, ev Event, when, content string) error {
	at, err := parseLocalTime(when, rt.loc)
	if err != nil {
		return rt.reply(ctx, ev, err.Error(), nil)
	}
	if !at.After(rt.now()) {
		return rt.reply(ctx, ev, replyPastFire, nil)
	}

	rt.sessions.Put(ev.UserID, session.NewPriority(strings.TrimSpace(content), at.UTC()))
	return rt.reply(ctx, ev, replyAskEarly, earlyOffsetKeyboard())
}

// applyEarlyOffset moves an existing one-off's first notification ahead
// of its occurrence. Offset zero keeps the original instant; a lead that
// lands in the past is rejected without touching the stored fire time.
func (rt *Router) applyEarlyOffset(ctx context.Context, ev Event, rawID, rawMinutes string) error {
	id, _ := strconv.ParseInt(rawID, 10, 64)
	minutes, err := strconv.Atoi(rawMinutes)
	if err != nil || minutes < 0 {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	r, err := rt.store.Get(ctx, id)
	if err != nil {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if r == nil || r.Creator != ev.UserID || r.IsRecurring() || r.OccursAt == nil || r.Fired {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}
	if minutes == 0 {
		return rt.reply(ctx, ev, fmt.Sprintf("Reminder #%d will fire right on time.", id), nil)
	}

	fireAt := r.OccursAt.Add(-time.Duration(minutes) * time.Minute)
	if !fireAt.After(rt.now()) {
		return rt.reply(ctx, ev, replyPastFire, nil)
	}

	ok, err := rt.store.SetNextFire(ctx, id, &fireAt)
	if err != nil {
		rt.logger.Error("failed to set early fire time", err,
			logger.Field{Key: "reminder_id", Value: id})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if !ok {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}

	if err := rt.sched.Arm(scheduler.OneOffJob(id, fireAt)); err != nil {
		rt.logger.Error("failed to re-arm early reminder", err,
			logger.Field{Key: "reminder_id", Value: id})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	return rt.reply(ctx, ev,
		fmt.Sprintf("Reminder #%d will notify %d minutes early, at %s.",
			id, minutes, fireAt.In(rt.loc).Format("2006-01-02 15:04")), nil)
}

func (rt *Router) pickEarlyOffset(ctx context.Context, ev Event, rawMinutes string) error {
	s := rt.sessions.Get(ev.UserID)
	if s == nil || s.Stage != session.StageChoosingEarlyOffset {
		return rt.reply(ctx, ev, replyHelp, nil)
	}

	minutes, err := strconv.Atoi(rawMinutes)
	if err != nil || minutes < 0 {
		return rt.reply(ctx, ev, replyUseButtons, earlyOffsetKeyboard())
	}

	s.EarlyOffset = time.Duration(minutes) * time.Minute
	s.Stage = session.StageChoosingPriorityTier
	rt.sessions.Put(ev.UserID, s)
	return rt.reply(ctx, ev, replyAskTier, tierKeyboard())
}

// pickTier commits the priority reminder. The first fire lands at
// occurs_at minus the early offset; a computed instant already in the past
// is rejected before any store or scheduler mutation.
func (rt *Router) pickTier(ctx context.Context, ev Event, rawTier string) error {
	s := rt.sessions.Get(ev.UserID)
	if s == nil || s.Stage != session.StageChoosingPriorityTier {
		return rt.reply(ctx, ev, replyHelp, nil)
	}

	priority, err := strconv.Atoi(rawTier)
	if err != nil {
		return rt.reply(ctx, ev, replyUseButtons, tierKeyboard())
	}
	tier, ok := rt.tiers.Lookup(priority)
	if !ok {
		return rt.reply(ctx, ev, replyUseButtons, tierKeyboard())
	}

	firstFire := s.OccursAt.Add(-s.EarlyOffset)
	if !firstFire.After(rt.now()) {
		rt.sessions.Clear(ev.UserID)
		return rt.reply(ctx, ev, replyPastFire, nil)
	}

	occursAt := s.OccursAt
	id, err := rt.store.Create(ctx, &store.Reminder{
		Creator:          ev.UserID,
		Target:           ev.Target,
		TargetKind:       ev.TargetKind,
		DisplayName:      ev.DisplayName,
		Content:          s.Content,
		OccursAt:         &occursAt,
		NextFireAt:       &firstFire,
		Priority:         priority,
		RepeatsRemaining: tier.Repeats,
	})
	if err != nil {
		rt.logger.Error("failed to create priority reminder", err,
			logger.Field{Key: "user_id", Value: ev.UserID})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	if err := rt.sched.Arm(scheduler.OneOffJob(id, firstFire)); err != nil {
		rt.logger.Error("failed to arm priority reminder", err,
			logger.Field{Key: "reminder_id", Value: id})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	rt.sessions.Clear(ev.UserID)
	return rt.reply(ctx, ev,
		fmt.Sprintf("Priority reminder #%d set, first notification at %s.",
			id, firstFire.In(rt.loc).Format("2006-01-02 15:04")), nil)
}

// commitEdit applies the edit flow's free-text reply. A leading "+"
// appends to the original content as "original (appended)".
func (rt *Router) commitEdit(ctx context.Context, ev Event, s *session.Session, text string) error {
	var content string
	if strings.HasPrefix(text, appendMarker) {
		appended := strings.TrimSpace(strings.TrimPrefix(text, appendMarker))
		content = fmt.Sprintf("%s (%s)", s.OriginalContent, appended)
	} else {
		content = text
	}

	ok, err := rt.store.UpdateContent(ctx, s.ReminderID, content)
	if err != nil {
		rt.logger.Error("failed to update reminder content", err,
			logger.Field{Key: "reminder_id", Value: s.ReminderID})
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}

	rt.sessions.Clear(ev.UserID)
	if !ok {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}
	return rt.reply(ctx, ev, fmt.Sprintf("Reminder #%d updated.", s.ReminderID), nil)
}

func (rt *Router) confirmPostback(ctx context.Context, ev Event, rawID string) error {
	id, _ := strconv.ParseInt(rawID, 10, 64)

	ok, err := rt.esc.Confirm(ctx, id, ev.UserID)
	if err != nil {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if !ok {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}
	return rt.reply(ctx, ev, replyConfirmedDone, nil)
}

func (rt *Router) snoozePostback(ctx context.Context, ev Event, rawID string) error {
	id, _ := strconv.ParseInt(rawID, 10, 64)
	until := rt.now().Add(snoozeDefault)

	ok, err := rt.esc.Snooze(ctx, id, ev.UserID, until)
	if err != nil {
		return rt.reply(ctx, ev, replyTryAgain, nil)
	}
	if !ok {
		return rt.reply(ctx, ev, replyNotFound, nil)
	}
	return rt.reply(ctx, ev, fmt.Sprintf("Snoozed for %d minutes.", int(snoozeDefault.Minutes())), nil)
}
