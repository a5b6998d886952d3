package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/domain"
)

type fakeHandler struct {
	name string
	ok   bool

	mu        sync.Mutex
	delivered []domain.Alert
}

func (f *fakeHandler) Name() string { return f.name }

func (f *fakeHandler) Deliver(ctx context.Context, alert domain.Alert) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, alert)
	return f.ok
}

func (f *fakeHandler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(t *testing.T, settings config.AlertSettings) *Manager {
	t.Helper()
	m, err := New(settings, quietLogger(), nil)
	require.NoError(t, err)
	return m
}

func enabledSettings() config.AlertSettings {
	return config.AlertSettings{Enabled: true, MaxHistory: 100}
}

func TestSend_DeliversToAllHandlers(t *testing.T) {
	m := newTestManager(t, enabledSettings())
	h1 := &fakeHandler{name: "h1", ok: true}
	h2 := &fakeHandler{name: "h2", ok: true}
	m.AddHandler(h1)
	m.AddHandler(h2)

	alert := m.Send(context.Background(), "i1", domain.AlertWarning, "slow start", nil)

	assert.Equal(t, 1, h1.count())
	assert.Equal(t, 1, h2.count())
	assert.Equal(t, "i1", alert.InstanceID)
	assert.NotEmpty(t, alert.ID)
}

func TestSend_FailingHandlersDoNotStopDelivery(t *testing.T) {
	m := newTestManager(t, enabledSettings())
	failing := &fakeHandler{name: "failing", ok: false}
	working := &fakeHandler{name: "working", ok: true}
	m.AddHandler(failing)
	m.AddHandler(working)

	m.Send(context.Background(), "i1", domain.AlertError, "crash detected", nil)

	// Both handlers were attempted and exactly one alert was recorded
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, working.count())
	assert.Len(t, m.History("", "", 0), 1)
}

func TestSend_RecordsHistoryWithNoHandlers(t *testing.T) {
	m := newTestManager(t, enabledSettings())

	m.Send(context.Background(), "i1", domain.AlertInfo, "recovered", nil)

	history := m.History("i1", "", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "recovered", history[0].Message)
}

func TestSend_CooldownSuppressesDispatchNotHistory(t *testing.T) {
	settings := enabledSettings()
	settings.Cooldown = time.Hour
	m := newTestManager(t, settings)
	h := &fakeHandler{name: "h", ok: true}
	m.AddHandler(h)

	m.Send(context.Background(), "i1", domain.AlertWarning, "first", nil)
	m.Send(context.Background(), "i1", domain.AlertWarning, "repeat", nil)

	assert.Equal(t, 1, h.count())
	assert.Len(t, m.History("i1", "", 0), 2)
}

func TestSend_CooldownIsPerInstanceAndLevel(t *testing.T) {
	settings := enabledSettings()
	settings.Cooldown = time.Hour
	m := newTestManager(t, settings)
	h := &fakeHandler{name: "h", ok: true}
	m.AddHandler(h)

	m.Send(context.Background(), "i1", domain.AlertWarning, "a", nil)
	m.Send(context.Background(), "i1", domain.AlertCritical, "b", nil)
	m.Send(context.Background(), "i2", domain.AlertWarning, "c", nil)

	assert.Equal(t, 3, h.count())
}

func TestSend_DisabledSkipsDispatch(t *testing.T) {
	settings := enabledSettings()
	settings.Enabled = false
	m := newTestManager(t, settings)
	h := &fakeHandler{name: "h", ok: true}
	m.AddHandler(h)

	m.Send(context.Background(), "i1", domain.AlertInfo, "quiet", nil)

	assert.Zero(t, h.count())
	assert.Len(t, m.History("", "", 0), 1)
}

func TestAddRemoveHandler(t *testing.T) {
	m := newTestManager(t, enabledSettings())
	h := &fakeHandler{name: "h", ok: true}

	m.AddHandler(h)
	assert.Equal(t, []string{"h"}, m.Handlers())

	m.RemoveHandler("h")
	assert.Empty(t, m.Handlers())

	m.Send(context.Background(), "i1", domain.AlertInfo, "gone", nil)
	assert.Zero(t, h.count())
}

func TestNew_BuildsHandlersFromSettings(t *testing.T) {
	settings := enabledSettings()
	settings.LogAlerts = true
	settings.FileAlerts = true
	settings.FilePath = t.TempDir() + "/alerts/warden.jsonl"

	m := newTestManager(t, settings)
	assert.Equal(t, []string{"log", "file"}, m.Handlers())

	// Parent directory was created on construction
	_, err := os.Stat(t.TempDir())
	assert.NoError(t, err)
}

func TestNew_FileAlertsWithoutPathFails(t *testing.T) {
	settings := enabledSettings()
	settings.FileAlerts = true

	_, err := New(settings, quietLogger(), nil)
	assert.Error(t, err)
}

func TestHistory_CapEvictsOldest(t *testing.T) {
	settings := enabledSettings()
	settings.MaxHistory = 5
	m := newTestManager(t, settings)

	for i := 0; i < 8; i++ {
		m.Send(context.Background(), "i1", domain.AlertInfo, fmt.Sprintf("msg-%d", i), nil)
	}

	history := m.History("", "", 0)
	require.Len(t, history, 5)
	assert.Equal(t, "msg-7", history[0].Message)
	assert.Equal(t, "msg-3", history[4].Message)
}

func TestHistory_Filters(t *testing.T) {
	m := newTestManager(t, enabledSettings())

	m.Send(context.Background(), "i1", domain.AlertInfo, "a", nil)
	m.Send(context.Background(), "i2", domain.AlertCritical, "b", nil)
	m.Send(context.Background(), "i1", domain.AlertCritical, "c", nil)

	byInstance := m.History("i1", "", 0)
	require.Len(t, byInstance, 2)
	assert.Equal(t, "c", byInstance[0].Message)

	byLevel := m.History("", domain.AlertCritical, 0)
	require.Len(t, byLevel, 2)

	limited := m.History("", "", 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].Message)
}

func TestClearHistory(t *testing.T) {
	m := newTestManager(t, enabledSettings())

	m.Send(context.Background(), "i1", domain.AlertInfo, "a", nil)
	m.Send(context.Background(), "i2", domain.AlertInfo, "b", nil)

	m.ClearHistory("i1")
	assert.Empty(t, m.History("i1", "", 0))
	assert.Len(t, m.History("", "", 0), 1)

	m.ClearHistory("")
	assert.Empty(t, m.History("", "", 0))
}
