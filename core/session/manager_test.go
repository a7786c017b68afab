package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewManager_invalidArgs(t *testing.T) {
	tests := []struct {
		name   string
		loader Loader
		opts   Options
	}{
		{name: "no loader", opts: Options{FetchTimeout: time.Second, TTL: time.Hour}},
		{name: "no timeout", loader: newFakeLoader(), opts: Options{TTL: time.Hour}},
		{name: "no ttl", loader: newFakeLoader(), opts: Options{FetchTimeout: time.Second}},
		{name: "negative cap", loader: newFakeLoader(), opts: Options{FetchTimeout: time.Second, TTL: time.Hour, MaxSessions: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mgr, err := NewManager(tc.loader, tc.opts)
			assert.Error(t, err)
			assert.Nil(t, mgr)
		})
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	mgr := newTestManager(t, newFakeLoader())

	sess, created := mgr.GetOrCreate("")
	assert.True(t, created)
	require.NotNil(t, sess)

	again, created := mgr.GetOrCreate(sess.ID())
	assert.False(t, created)
	assert.Same(t, sess, again)

	other, created := mgr.GetOrCreate("0b6a4a4e-0000-4000-8000-000000000000")
	assert.True(t, created)
	assert.NotEqual(t, sess.ID(), other.ID())
	assert.Equal(t, 2, mgr.Len())

	mgr.Remove(other.ID())
	_, ok := mgr.Get(other.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, mgr.Len())
}

func TestManager_evictsIdleSessions(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	mgr := newTestManager(t, newFakeLoader())
	mgr.now = clk.Now

	idle := mgr.Create()
	active := mgr.Create()

	clk.Advance(40 * time.Minute)
	_, ok := mgr.Get(active.ID())
	require.True(t, ok)

	clk.Advance(40 * time.Minute)
	_, ok = mgr.Get(idle.ID())
	assert.False(t, ok, "idle for longer than the TTL")
	_, ok = mgr.Get(active.ID())
	assert.True(t, ok, "seen within the TTL")
	assert.Equal(t, 1, mgr.Len())

	_, err := idle.Snapshot(testContext(t))
	assert.Equal(t, ErrClosed, err, "evicted sessions are closed")
}

func TestManager_capsLiveSessions(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	loader := newFakeLoader()
	mgr, err := NewManager(loader, Options{FetchTimeout: 5 * time.Second, TTL: time.Hour, MaxSessions: 2})
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	mgr.now = clk.Now

	first := mgr.Create()
	clk.Advance(time.Minute)
	second := mgr.Create()
	clk.Advance(time.Minute)
	_, ok := mgr.Get(first.ID())
	require.True(t, ok)

	clk.Advance(time.Minute)
	third := mgr.Create()
	assert.Equal(t, 2, mgr.Len())
	_, ok = mgr.Get(second.ID())
	assert.False(t, ok, "least recently seen session is evicted")
	_, ok = mgr.Get(first.ID())
	assert.True(t, ok)
	_, ok = mgr.Get(third.ID())
	assert.True(t, ok)

	_, err = second.Snapshot(testContext(t))
	assert.Equal(t, ErrClosed, err)
}

func TestManager_createDoesNotFetch(t *testing.T) {
	loader := newFakeLoader()
	mgr := newTestManager(t, loader)
	for i := 0; i < 25; i++ {
		mgr.GetOrCreate("")
	}
	assert.Equal(t, 25, mgr.Len())
	assert.Equal(t, 0, loader.callCount(akrofufu1.Key), "sessions load on open only")
}
