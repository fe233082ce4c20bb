package commands

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiahung/remibot/internal/config"
	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/escalation"
	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/retry"
	"github.com/chiahung/remibot/internal/scheduler"
	"github.com/chiahung/remibot/internal/session"
	"github.com/chiahung/remibot/internal/store"
)

type fakeScheduler struct {
	mu       sync.Mutex
	armed    map[string]scheduler.Job
	disarmed []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[string]scheduler.Job)}
}

func (f *fakeScheduler) Arm(job scheduler.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[job.ID] = job
	return nil
}

func (f *fakeScheduler) Disarm(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, jobID)
	f.disarmed = append(f.disarmed, jobID)
}

type captureSender struct {
	mu   sync.Mutex
	sent []dispatch.Notification
}

func (c *captureSender) Send(ctx context.Context, n dispatch.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureSender) last(t *testing.T) dispatch.Notification {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

type routerFixture struct {
	router   *Router
	store    *store.Store
	sched    *fakeScheduler
	sender   *captureSender
	sessions *session.Manager
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "reminders.db"), log,
		retry.Config{MaxAttempts: 1, Backoff: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sched := newFakeScheduler()
	sender := &captureSender{}
	sessions := session.NewManager()
	tiers := escalation.TiersFromConfig(config.EscalationConfig{
		Tier1: config.TierConfig{IntervalMinutes: 60, Repeats: 1},
		Tier2: config.TierConfig{IntervalMinutes: 15, Repeats: 2},
		Tier3: config.TierConfig{IntervalMinutes: 5, Repeats: 3},
	})
	esc := escalation.New(st, sched, sender, tiers, log)
	router := New(st, sched, esc, sessions, sender, tiers, time.UTC, log)

	return &routerFixture{router: router, store: st, sched: sched, sender: sender, sessions: sessions}
}

func event(userID, text string) Event {
	return Event{
		UserID: userID, Target: userID, TargetKind: store.TargetUser,
		DisplayName: "Alice", Text: text,
	}
}

func postback(userID, data string) Event {
	return Event{
		UserID: userID, Target: userID, TargetKind: store.TargetUser,
		DisplayName: "Alice", Postback: data,
	}
}

func TestOneShotRemind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-01 18:00 water the plants")))

	assert.Contains(t, f.sender.last(t).Text, "Reminder #1 set")
	// Creation offers the early heads-up menu for the new reminder.
	require.NotEmpty(t, f.sender.last(t).Buttons)
	assert.Contains(t, f.sender.last(t).Buttons[0].Data, "action=early_offset&id=1")

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "water the plants", got.Content)
	assert.Zero(t, got.Priority)

	job, ok := f.sched.armed["oneoff:1"]
	require.True(t, ok)
	assert.True(t, job.At.Equal(time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)))
}

func TestOneShotRemind_PastTimeRejectedBeforeMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2020-01-01 10:00 too late")))

	assert.Equal(t, replyPastFire, f.sender.last(t).Text)
	assert.Empty(t, f.sched.armed)

	reminders, err := f.store.ListByCreator(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestUnknownTextGetsHelp(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.router.Handle(context.Background(), event("u1", "what can you do")))
	assert.Equal(t, replyHelp, f.sender.last(t).Text)
}

func TestRecurringWizard_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "recurring")))
	require.NotNil(t, f.sessions.Get("u1"))

	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=toggle_weekday&day=MON")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=toggle_weekday&day=WED")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=pick_time&time=09:00")))

	s := f.sessions.Get("u1")
	require.NotNil(t, s)
	assert.Equal(t, session.StageAwaitingContent, s.Stage)

	require.NoError(t, f.router.Handle(ctx, event("u1", "morning standup")))

	assert.Nil(t, f.sessions.Get("u1"))
	assert.Contains(t, f.sender.last(t).Text, "MON,WED|09:00")

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, "MON,WED|09:00", got.Recurrence.String())
	assert.Equal(t, "morning standup", got.Content)

	assert.Contains(t, f.sched.armed, "recurring:1")
}

func TestRecurringWizard_TimeRequiresWeekdays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "recurring")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=pick_time&time=09:00")))

	assert.Equal(t, replyNeedWeekday, f.sender.last(t).Text)
	assert.Equal(t, session.StageCollectingRecurrence, f.sessions.Get("u1").Stage)
}

func TestRecurringWizard_ToggleTwiceRemovesDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "recurring")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=toggle_weekday&day=FRI")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=toggle_weekday&day=FRI")))

	assert.Empty(t, f.sessions.Get("u1").SelectedWeekdays())
}

func TestStrayTextReprompts_WithoutMutatingPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "recurring")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=toggle_weekday&day=TUE")))

	require.NoError(t, f.router.Handle(ctx, event("u1", "hello??")))

	assert.Equal(t, replyUseButtons, f.sender.last(t).Text)
	s := f.sessions.Get("u1")
	require.NotNil(t, s)
	assert.Equal(t, session.StageCollectingRecurrence, s.Stage)
	assert.Equal(t, []time.Weekday{time.Tuesday}, s.SelectedWeekdays())
}

func TestCancelClearsSessionFromAnyStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "recurring")))
	require.NotNil(t, f.sessions.Get("u1"))

	require.NoError(t, f.router.Handle(ctx, event("u1", "cancel")))

	assert.Nil(t, f.sessions.Get("u1"))
	assert.Equal(t, replyCancelled, f.sender.last(t).Text)

	// No reminder was committed.
	reminders, err := f.store.ListByCreator(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestPriorityWizard_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	f.router.now = func() time.Time { return now }

	require.NoError(t, f.router.Handle(ctx, event("u1", "priority 2025-04-01 18:00 dentist appointment")))
	require.NotNil(t, f.sessions.Get("u1"))
	assert.Equal(t, session.StageChoosingEarlyOffset, f.sessions.Get("u1").Stage)

	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=early_offset&minutes=30")))
	assert.Equal(t, session.StageChoosingPriorityTier, f.sessions.Get("u1").Stage)

	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=pick_tier&tier=3")))

	assert.Nil(t, f.sessions.Get("u1"))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Priority)
	assert.Equal(t, 3, got.RepeatsRemaining)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(time.Date(2025, 4, 1, 17, 30, 0, 0, time.UTC)))

	job, ok := f.sched.armed["oneoff:1"]
	require.True(t, ok)
	assert.True(t, job.At.Equal(time.Date(2025, 4, 1, 17, 30, 0, 0, time.UTC)))
}

func TestPriorityWizard_ComputedPastFireRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 17, 50, 0, 0, time.UTC)
	f.router.now = func() time.Time { return now }

	// Occurs in ten minutes; a one-day early offset lands in the past.
	require.NoError(t, f.router.Handle(ctx, event("u1", "priority 2025-04-01 18:00 too soon")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=early_offset&minutes=1440")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=pick_tier&tier=2")))

	assert.Equal(t, replyPastFire, f.sender.last(t).Text)
	assert.Empty(t, f.sched.armed)

	reminders, err := f.store.ListByCreator(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestEditFlow_Replace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-02 09:00 old text")))
	require.NoError(t, f.router.Handle(ctx, event("u1", "edit 1")))
	assert.Equal(t, replyAskEditText, f.sender.last(t).Text)

	require.NoError(t, f.router.Handle(ctx, event("u1", "brand new text")))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "brand new text", got.Content)
	assert.Nil(t, f.sessions.Get("u1"))
}

func TestEditFlow_AppendMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-02 09:00 buy milk")))
	require.NoError(t, f.router.Handle(ctx, event("u1", "edit 1")))
	require.NoError(t, f.router.Handle(ctx, event("u1", "+and eggs")))

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "buy milk (and eggs)", got.Content)
}

func TestEditFlow_NotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-02 09:00 private")))
	require.NoError(t, f.router.Handle(ctx, event("u2", "edit 1")))

	assert.Equal(t, replyNotFound, f.sender.last(t).Text)
	assert.Nil(t, f.sessions.Get("u2"))
}

func TestDelete_OwnerChecked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-02 09:00 secret")))

	// Unauthorized delete reports not-found, indistinguishable from a
	// missing reminder.
	require.NoError(t, f.router.Handle(ctx, event("u2", "delete 1")))
	assert.Equal(t, replyNotFound, f.sender.last(t).Text)

	require.NoError(t, f.router.Handle(ctx, event("u1", "delete 1")))
	assert.Contains(t, f.sender.last(t).Text, "deleted")
	assert.Contains(t, f.sched.disarmed, "oneoff:1")

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "list")))
	assert.Equal(t, replyEmptyList, f.sender.last(t).Text)

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-02 09:00 dentist")))
	require.NoError(t, f.router.Handle(ctx, event("u1", "list")))

	text := f.sender.last(t).Text
	assert.Contains(t, text, "#1")
	assert.Contains(t, text, "dentist")
}

func TestConfirmPostback_StopsEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "priority 2099-04-01 18:00 submit report")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=early_offset&minutes=0")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=pick_tier&tier=3")))

	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=confirm&id=1")))
	assert.Equal(t, replyConfirmedDone, f.sender.last(t).Text)

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnoozePostback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2099-04-02 09:00 call mom")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=snooze&id=1")))

	assert.Contains(t, f.sender.last(t).Text, "Snoozed")

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
}

func TestSnoozeCommand_CustomTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2099-04-02 09:00 call mom")))
	require.NoError(t, f.router.Handle(ctx, event("u1", "snooze 1 2099-04-02 12:00")))

	assert.Contains(t, f.sender.last(t).Text, "snoozed until")

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(time.Date(2099, 4, 2, 12, 0, 0, 0, time.UTC)))
}

func TestSnoozeCommand_NotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2099-04-02 09:00 call mom")))

	// Someone else's snooze reports not-found and moves nothing.
	require.NoError(t, f.router.Handle(ctx, event("intruder", "snooze 1 2099-12-31 23:00")))
	assert.Equal(t, replyNotFound, f.sender.last(t).Text)

	require.NoError(t, f.router.Handle(ctx, postback("intruder", "action=snooze&id=1")))
	assert.Equal(t, replyNotFound, f.sender.last(t).Text)

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(time.Date(2099, 4, 2, 9, 0, 0, 0, time.UTC)))
}

func TestOneShotEarlyOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-01 18:00 leave for airport")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=early_offset&id=1&minutes=30")))

	assert.Contains(t, f.sender.last(t).Text, "30 minutes early")

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(time.Date(2025, 4, 1, 17, 30, 0, 0, time.UTC)))
	// The occurrence itself does not move.
	require.NotNil(t, got.OccursAt)
	assert.True(t, got.OccursAt.Equal(time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)))

	job, ok := f.sched.armed["oneoff:1"]
	require.True(t, ok)
	assert.True(t, job.At.Equal(time.Date(2025, 4, 1, 17, 30, 0, 0, time.UTC)))
}

func TestOneShotEarlyOffset_PastLeadRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 17, 50, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-01 18:00 too soon")))
	require.NoError(t, f.router.Handle(ctx, postback("u1", "action=early_offset&id=1&minutes=1440")))

	assert.Equal(t, replyPastFire, f.sender.last(t).Text)

	// The reminder keeps its on-time fire.
	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)))
}

func TestOneShotEarlyOffset_NotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.now = func() time.Time { return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, f.router.Handle(ctx, event("u1", "remind me 2025-04-01 18:00 private")))
	require.NoError(t, f.router.Handle(ctx, postback("u2", "action=early_offset&id=1&minutes=30")))

	assert.Equal(t, replyNotFound, f.sender.last(t).Text)

	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)))
}
