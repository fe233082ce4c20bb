package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/retry"
	"github.com/chiahung/remibot/internal/store"
)

type fakeGateway struct {
	mu       sync.Mutex
	pushed   []Notification
	failures int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Push(ctx context.Context, n Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures > 0 {
		g.failures--
		return errors.New("channel unavailable")
	}
	g.pushed = append(g.pushed, n)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testNotification() Notification {
	return Notification{
		Target:     "u1",
		TargetKind: store.TargetUser,
		Kind:       KindReminder,
		Text:       "time to stretch",
		Buttons:    []Button{{Label: "Done", Data: "action=confirm&id=1"}},
	}
}

func TestDispatcher_Send(t *testing.T) {
	gw := &fakeGateway{}
	d := New(gw, testLogger(t), retry.Config{MaxAttempts: 1, Backoff: time.Millisecond}, nil)

	require.NoError(t, d.Send(context.Background(), testNotification()))
	require.Len(t, gw.pushed, 1)
	assert.Equal(t, "time to stretch", gw.pushed[0].Text)
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	gw := &fakeGateway{failures: 2}
	d := New(gw, testLogger(t), retry.Config{MaxAttempts: 3, Backoff: time.Millisecond}, nil)

	require.NoError(t, d.Send(context.Background(), testNotification()))
	assert.Len(t, gw.pushed, 1)
}

func TestDispatcher_ExhaustedRetriesFail(t *testing.T) {
	gw := &fakeGateway{failures: 5}
	d := New(gw, testLogger(t), retry.Config{MaxAttempts: 2, Backoff: time.Millisecond}, nil)

	err := d.Send(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch to fake")
	assert.Empty(t, gw.pushed)
}
