package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/users"
	"github.com/UjjawalMishra93/civic-issue-system/internal/realtime"
)

func newTestManager(store *fakeStore, auth *fakeAuth) *Manager {
	return NewManager(store, &fakeBackend{}, auth, &recordingSink{}, Config{RemoteTimeout: time.Second}, testLogger())
}

func TestManager_OpenAndGet(t *testing.T) {
	store := newFakeStore(newIssue("a", 3))
	m := newTestManager(store, &fakeAuth{user: citizen})

	rec, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, citizen.ID, rec.Owner())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get("session-1")
	require.NoError(t, err)
	assert.Same(t, rec, got)

	_, err = m.Get("session-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_Open_RequiresUser(t *testing.T) {
	m := newTestManager(newFakeStore(), &fakeAuth{})

	_, err := m.Open(context.Background(), "session-1")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Zero(t, m.Len())
}

func TestManager_Open_ReusesSameOwner(t *testing.T) {
	store := newFakeStore(newIssue("a", 3))
	m := newTestManager(store, &fakeAuth{user: citizen})

	first, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)

	store.setCount("a", 5)
	second, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 5, mustIssue(t, second.Snapshot(), "a").UpvoteCount)
}

func TestManager_Open_ReplacesOtherOwner(t *testing.T) {
	store := newFakeStore(newIssue("a", 3))
	auth := &fakeAuth{user: citizen}
	m := newTestManager(store, auth)

	first, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)

	auth.set(&users.User{ID: "user-2"})
	second, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "user-2", second.Owner())
	assert.Equal(t, 1, m.Len())
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(newFakeStore(newIssue("a", 3)), &fakeAuth{user: citizen})

	_, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)

	assert.True(t, m.Close("session-1"))
	assert.False(t, m.Close("session-1"))
	assert.Zero(t, m.Len())

	_, err = m.Get("session-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_HandleChange_RefreshesAllSessions(t *testing.T) {
	store := newFakeStore(newIssue("a", 3))
	auth := &fakeAuth{user: citizen}
	m := newTestManager(store, auth)

	one, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)
	auth.set(&users.User{ID: "user-2"})
	two, err := m.Open(context.Background(), "session-2")
	require.NoError(t, err)

	store.setCount("a", 8)
	m.HandleChange(context.Background(), realtime.Change{
		Table:    realtime.TableUpvotes,
		Type:     realtime.ChangeInsert,
		RecordID: "a",
	})

	assert.Equal(t, 8, mustIssue(t, one.Snapshot(), "a").UpvoteCount)
	assert.Equal(t, 8, mustIssue(t, two.Snapshot(), "a").UpvoteCount)
}

func TestManager_HandleChange_NoSessions(t *testing.T) {
	store := newFakeStore(newIssue("a", 3))
	m := newTestManager(store, &fakeAuth{user: citizen})

	m.HandleChange(context.Background(), realtime.Change{Table: realtime.TableIssues, Type: realtime.ChangeUpdate})

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Zero(t, store.fetches)
}

func TestManager_EvictIdle(t *testing.T) {
	store := newFakeStore(newIssue("a", 3))
	auth := &fakeAuth{user: citizen}
	m := NewManager(store, &fakeBackend{}, auth, &recordingSink{}, Config{SessionIdleTTL: time.Minute}, testLogger())

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, err := m.Open(context.Background(), "abandoned")
	require.NoError(t, err)
	auth.set(&users.User{ID: "user-2"})
	active, err := m.Open(context.Background(), "active")
	require.NoError(t, err)

	clock = clock.Add(45 * time.Second)
	_, err = m.Get("active")
	require.NoError(t, err)

	clock = clock.Add(30 * time.Second)

	// Past its TTL but not yet swept: unreachable and not refreshed
	_, err = m.Get("abandoned")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	store.mu.Lock()
	before := store.fetches
	store.mu.Unlock()
	store.setCount("a", 8)
	m.HandleChange(context.Background(), realtime.Change{Table: realtime.TableUpvotes, Type: realtime.ChangeInsert, RecordID: "a"})
	store.mu.Lock()
	assert.Equal(t, before+1, store.fetches, "only the active session refetches")
	store.mu.Unlock()
	assert.Equal(t, 8, mustIssue(t, active.Snapshot(), "a").UpvoteCount)

	assert.Equal(t, 1, m.EvictIdle())
	assert.Equal(t, 1, m.Len())
	assert.Zero(t, m.EvictIdle())
}

func TestManager_StartSweeper(t *testing.T) {
	m := NewManager(newFakeStore(newIssue("a", 3)), &fakeBackend{}, &fakeAuth{user: citizen}, &recordingSink{},
		Config{SessionIdleTTL: time.Millisecond}, testLogger())

	_, err := m.Open(context.Background(), "session-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartSweeper(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}
