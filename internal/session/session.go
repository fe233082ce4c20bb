// Package session holds per-user conversation state for multi-step
// reminder setup flows. Sessions live only in process memory; nothing is
// written to the reminder store until a flow's final stage commits, so
// losing in-flight sessions on restart is acceptable.
package session

import (
	"sync"
	"time"
)

// Stage identifies where a user is inside a setup flow. The absence of a
// session means idle.
type Stage string

const (
	// StageCollectingRecurrence accumulates a weekday set and time of day
	// for a recurring reminder.
	StageCollectingRecurrence Stage = "collecting_recurrence"
	// StageAwaitingContent consumes the next free-text message as the
	// recurring reminder body.
	StageAwaitingContent Stage = "awaiting_content"
	// StageChoosingEarlyOffset picks how long before the occurrence the
	// first priority notification fires.
	StageChoosingEarlyOffset Stage = "choosing_early_offset"
	// StageChoosingPriorityTier picks the escalation tier.
	StageChoosingPriorityTier Stage = "choosing_priority_tier"
	// StageAwaitingEditContent consumes the next free-text message as the
	// replacement (or appended) body of an existing reminder.
	StageAwaitingEditContent Stage = "awaiting_edit_content"
)

// Session is one user's in-progress flow.
type Session struct {
	Stage Stage

	// Recurring wizard accumulator.
	Weekdays map[time.Weekday]bool
	Hour     int
	Minute   int
	HasTime  bool

	// Priority wizard accumulator.
	Content     string
	OccursAt    time.Time
	EarlyOffset time.Duration

	// Edit flow.
	ReminderID      int64
	OriginalContent string
}

// NewRecurring starts the recurring wizard with an empty weekday set.
func NewRecurring() *Session {
	return &Session{
		Stage:    StageCollectingRecurrence,
		Weekdays: make(map[time.Weekday]bool),
	}
}

// NewPriority starts the priority wizard with the already-parsed content
// and occurrence instant.
func NewPriority(content string, occursAt time.Time) *Session {
	return &Session{
		Stage:    StageChoosingEarlyOffset,
		Content:  content,
		OccursAt: occursAt,
	}
}

// NewEdit starts the edit flow for an existing reminder.
func NewEdit(reminderID int64, originalContent string) *Session {
	return &Session{
		Stage:           StageAwaitingEditContent,
		ReminderID:      reminderID,
		OriginalContent: originalContent,
	}
}

// ToggleWeekday flips a weekday in the recurring accumulator.
func (s *Session) ToggleWeekday(d time.Weekday) {
	if s.Weekdays == nil {
		s.Weekdays = make(map[time.Weekday]bool)
	}
	if s.Weekdays[d] {
		delete(s.Weekdays, d)
	} else {
		s.Weekdays[d] = true
	}
}

// SelectedWeekdays returns the toggled weekdays in Monday-first order.
func (s *Session) SelectedWeekdays() []time.Weekday {
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	var out []time.Weekday
	for _, d := range order {
		if s.Weekdays[d] {
			out = append(out, d)
		}
	}
	return out
}

// clone returns a detached copy, including the weekday set.
func (s *Session) clone() *Session {
	c := *s
	if s.Weekdays != nil {
		c.Weekdays = make(map[time.Weekday]bool, len(s.Weekdays))
		for d, v := range s.Weekdays {
			c.Weekdays[d] = v
		}
	}
	return &c
}

// Manager is the shared session map keyed by user identity. Get hands out
// a detached copy and Put stores one, so handlers for rapid double-taps
// never mutate shared state; the last Put wins.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get returns a copy of the user's session, or nil when the user is idle.
// Mutations become visible only through Put.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[userID]; s != nil {
		return s.clone()
	}
	return nil
}

// Put installs or replaces the user's session.
func (m *Manager) Put(userID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s.clone()
}

// Clear removes the user's session. Clearing an idle user is a no-op.
func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len reports the number of active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
