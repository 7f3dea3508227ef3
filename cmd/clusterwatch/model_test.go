package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/heartbeat"
	"github.com/dd0wney/cluso-coord/pkg/lockstore"
)

type fakeSource struct {
	heartbeats []heartbeat.Row
	locks      []lockstore.LockRow
	err        error
}

func (f *fakeSource) ListHeartbeats(ctx context.Context) ([]heartbeat.Row, error) {
	return f.heartbeats, f.err
}

func (f *fakeSource) ListLocks(ctx context.Context) ([]lockstore.LockRow, error) {
	return f.locks, f.err
}

var now = time.UnixMilli(1_700_000_000_000)

func testSource() *fakeSource {
	dbTime := now.Add(-2 * time.Second)
	return &fakeSource{
		heartbeats: []heartbeat.Row{
			{NodeID: "node-b", HeartbeatTime: now.Add(-10 * time.Minute)},
			{NodeID: "node-a", HeartbeatTime: now.Add(-time.Second), DatabaseTime: &dbTime},
		},
		locks: []lockstore.LockRow{
			{Name: "free", UpdateTime: now},
			{Name: "held-dead", LockedBy: "node-b", UpdateTime: now},
			{Name: "held-live", LockedBy: "node-a", UpdateTime: now},
		},
	}
}

func TestLiveNodes(t *testing.T) {
	live := liveNodes(testSource().heartbeats, now, 5*time.Minute)
	assert.Equal(t, map[string]struct{}{"node-a": {}}, live)
}

func TestNodeRows(t *testing.T) {
	src := testSource()
	rows := nodeRows(src.heartbeats, liveNodes(src.heartbeats, now, 5*time.Minute))

	require.Len(t, rows, 2)
	assert.Equal(t, "node-a", rows[0][0])
	assert.Equal(t, "1000ms", rows[0][3])
	assert.Equal(t, "yes", rows[0][4])
	assert.Equal(t, "node-b", rows[1][0])
	assert.Equal(t, "-", rows[1][2])
	assert.Equal(t, "-", rows[1][3])
	assert.Equal(t, "no", rows[1][4])
}

func TestLockRows(t *testing.T) {
	src := testSource()
	rows := lockRows(src.locks, liveNodes(src.heartbeats, now, 5*time.Minute))

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"-", "-"}, []string{rows[0][1], rows[0][3]})
	assert.Equal(t, []string{"node-b", "no"}, []string{rows[1][1], rows[1][3]})
	assert.Equal(t, []string{"node-a", "yes"}, []string{rows[2][1], rows[2][3]})
}

func TestFetchCmd(t *testing.T) {
	src := testSource()
	msg := fetchCmd(src, clock.NewManual(now))()

	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	require.NoError(t, snap.err)
	assert.Len(t, snap.heartbeats, 2)
	assert.Len(t, snap.locks, 3)
	assert.True(t, snap.at.Equal(now))

	src.err = errors.New("connection refused")
	snap = fetchCmd(src, clock.NewManual(now))().(snapshotMsg)
	assert.EqualError(t, snap.err, "connection refused")
}

func TestUpdateAppliesSnapshot(t *testing.T) {
	src := testSource()
	m := initialModel(src, clock.NewManual(now), 5*time.Minute)

	updated, _ := m.Update(fetchCmd(src, clock.NewManual(now))())
	m = updated.(model)

	assert.Len(t, m.nodeTable.Rows(), 2)
	assert.Len(t, m.lockTable.Rows(), 3)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(model)
	out := m.View()
	assert.Contains(t, out, "1/2 nodes live, 2/3 locks held")
	assert.Contains(t, out, "node-a")
}

func TestUpdateKeepsRowsOnError(t *testing.T) {
	src := testSource()
	m := initialModel(src, clock.NewManual(now), 5*time.Minute)
	updated, _ := m.Update(fetchCmd(src, clock.NewManual(now))())
	m = updated.(model)

	updated, _ = m.Update(snapshotMsg{err: errors.New("timeout"), at: now})
	m = updated.(model)
	assert.Len(t, m.nodeTable.Rows(), 2)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(model)
	assert.True(t, strings.Contains(m.View(), "timeout"))
}

func TestTabSwitching(t *testing.T) {
	m := initialModel(testSource(), clock.NewManual(now), 5*time.Minute)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(model)
	assert.Equal(t, locksView, m.currentView)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(model)
	assert.Equal(t, nodesView, m.currentView)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = updated.(model)
	assert.Equal(t, locksView, m.currentView)
}

func TestQuitKey(t *testing.T) {
	m := initialModel(testSource(), clock.NewManual(now), 5*time.Minute)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewBeforeResize(t *testing.T) {
	m := initialModel(testSource(), clock.NewManual(now), 5*time.Minute)
	assert.Equal(t, "Initializing...", m.View())
}
