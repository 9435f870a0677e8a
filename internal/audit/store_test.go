package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/aliasync/internal/clock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndQuery(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.Write(Event{Timestamp: base, RunID: "r1", Action: ActionCreate, Resource: "web", Status: StatusOK}))
	require.NoError(t, s.Write(Event{Timestamp: base.Add(time.Second), RunID: "r1", Action: ActionUpdate, Resource: "ssh", Status: StatusFailed, Reason: `result "failed"`, Details: map[string]any{"content": "22"}}))
	require.NoError(t, s.Write(Event{Timestamp: base.Add(2 * time.Second), RunID: "r2", Action: ActionReload, Resource: "appliance", Status: StatusOK}))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	all, err := s.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ActionReload, all[0].Action, "newest first")
	assert.Equal(t, "web", all[2].Resource)
	assert.True(t, all[2].Timestamp.Equal(base))

	run1, err := s.Query(Filter{RunID: "r1"})
	require.NoError(t, err)
	assert.Len(t, run1, 2)

	ssh, err := s.Query(Filter{Resource: "ssh"})
	require.NoError(t, err)
	require.Len(t, ssh, 1)
	assert.Equal(t, StatusFailed, ssh[0].Status)
	assert.Equal(t, `result "failed"`, ssh[0].Reason)
	assert.Equal(t, "22", ssh[0].Details["content"])

	limited, err := s.Query(Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	windowed, err := s.Query(Filter{Since: base.Add(500 * time.Millisecond), Until: base.Add(1500 * time.Millisecond)})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "ssh", windowed[0].Resource)
}

func TestWriteDefaultsTimestamp(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	s.SetClock(clock.NewMockClock(now))

	require.NoError(t, s.Write(Event{RunID: "r", Action: ActionCreate, Resource: "web", Status: StatusOK}))

	events, err := s.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(now))
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.SetClock(clock.NewMockClock(now))

	require.NoError(t, s.Write(Event{Timestamp: now.AddDate(0, 0, -100), RunID: "old", Action: ActionCreate, Resource: "web", Status: StatusOK}))
	require.NoError(t, s.Write(Event{Timestamp: now.AddDate(0, 0, -1), RunID: "new", Action: ActionCreate, Resource: "web", Status: StatusOK}))

	removed, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	events, err := s.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].RunID)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")

	s, err := NewStore(path, 30)
	require.NoError(t, err)
	require.NoError(t, s.Write(Event{RunID: "r", Action: ActionReload, Resource: "appliance", Status: StatusOK}))
	require.NoError(t, s.Close())

	s, err = NewStore(path, 30)
	require.NoError(t, err)
	defer s.Close()

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
