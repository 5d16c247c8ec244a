package directory

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agentdir/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	gw, err := store.New("", nil)
	require.NoError(t, err)
	return NewRegistry(gw, log.New(io.Discard, "", 0))
}

func newPersistentRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	gw, err := store.New(dir, nil)
	require.NoError(t, err)
	return NewRegistry(gw, log.New(io.Discard, "", 0))
}

func TestRegister_RoundTrip(t *testing.T) {
	reg := newTestRegistry(t)

	agent, err := reg.Register("alice", "Alice", "dev", []string{"go", "review"}, StatusBusy, "backend dev")
	require.NoError(t, err)

	found, err := reg.Find(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, found.ID)
	assert.Equal(t, "alice", found.SessionName)
	assert.Equal(t, "Alice", found.Name)
	assert.Equal(t, "dev", found.Role)
	assert.Equal(t, []string{"go", "review"}, found.Capabilities)
	assert.Equal(t, StatusBusy, found.Status)
	assert.Equal(t, "backend dev", found.Description)
	assert.False(t, found.RegisteredAt.IsZero())
	assert.False(t, found.LastSeen.IsZero())
}

func TestRegister_IDFormat(t *testing.T) {
	reg := newTestRegistry(t)
	reg.clock = func() time.Time { return time.UnixMilli(1700000000000) }

	agent, err := reg.Register("alice", "Alice", "dev", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice_1700000000000", agent.ID)
	assert.Equal(t, StatusActive, agent.Status)
}

func TestRegister_ReplacesExistingSession(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Register("alice", "Alice", "dev", nil, "", "")
	require.NoError(t, err)
	second, err := reg.Register("alice", "Alice v2", "qa", nil, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Count())
	found, ok := reg.BySession("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice v2", found.Name)
	assert.Equal(t, second.ID, found.ID)
}

func TestRegister_CapacityLimit(t *testing.T) {
	reg := newTestRegistry(t)

	for i := 0; i < MaxAgents; i++ {
		_, err := reg.Register(fmt.Sprintf("agent-%d", i), fmt.Sprintf("Agent %d", i), "worker", nil, "", "")
		require.NoError(t, err)
	}
	require.Equal(t, MaxAgents, reg.Count())

	// The 101st registration fails and nothing is stored.
	_, err := reg.Register("one-too-many", "Overflow", "worker", nil, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is full")
	assert.Equal(t, MaxAgents, reg.Count())
	_, ok := reg.BySession("one-too-many")
	assert.False(t, ok)

	// Re-registering an existing session still works at capacity.
	_, err = reg.Register("agent-0", "Agent Zero", "worker", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, MaxAgents, reg.Count())
}

func TestRegister_Validation(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Register("", "Alice", "dev", nil, "", "")
	require.Error(t, err)
	_, err = reg.Register("alice", "", "dev", nil, "", "")
	require.Error(t, err)
	_, err = reg.Register("alice", "Alice", "", nil, "", "")
	require.Error(t, err)
	_, err = reg.Register("alice", "Alice", "dev", nil, "sleeping", "")
	require.Error(t, err)
}

func TestList_OrderAndFilters(t *testing.T) {
	reg := newTestRegistry(t)

	now := time.UnixMilli(1700000000000)
	reg.clock = func() time.Time { return now }
	_, err := reg.Register("alice", "Alice", "backend dev", []string{"go"}, StatusActive, "")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = reg.Register("bob", "Bob", "qa", []string{"selenium", "triage"}, StatusIdle, "")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = reg.Register("carol", "Carol", "frontend dev", []string{"react"}, StatusActive, "")
	require.NoError(t, err)

	// Snapshot is ordered by last-seen descending.
	all, err := reg.List("", "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "carol", all[0].SessionName)
	assert.Equal(t, "bob", all[1].SessionName)
	assert.Equal(t, "alice", all[2].SessionName)

	active, err := reg.List(StatusActive, "", "")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	devs, err := reg.List("", "dev", "")
	require.NoError(t, err)
	assert.Len(t, devs, 2)

	triagers, err := reg.List("", "", "tria")
	require.NoError(t, err)
	require.Len(t, triagers, 1)
	assert.Equal(t, "bob", triagers[0].SessionName)

	_, err = reg.List("sleeping", "", "")
	require.Error(t, err)
}

func TestFind_ByNameCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Register("alice", "Alice", "dev", nil, "", "")
	require.NoError(t, err)

	found, err := reg.Find("aLiCe")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.SessionName)

	// Substring is not an exact match.
	_, err = reg.Find("Ali")
	require.Error(t, err)
}

func TestUpdateStatus(t *testing.T) {
	reg := newTestRegistry(t)

	now := time.UnixMilli(1700000000000)
	reg.clock = func() time.Time { return now }
	_, err := reg.Register("alice", "Alice", "dev", nil, "", "")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	agent, err := reg.UpdateStatus("alice", StatusBusy, "deep in review")
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, agent.Status)
	assert.Equal(t, "deep in review", agent.StatusMessage)
	assert.Equal(t, now, agent.LastSeen)

	_, err = reg.UpdateStatus("ghost", StatusBusy, "")
	require.Error(t, err)

	_, err = reg.UpdateStatus("alice", "sleeping", "")
	require.Error(t, err)
}

func TestUnregister_RemovesQueues(t *testing.T) {
	reg := newTestRegistry(t)
	mb := NewMailbox(reg)

	_, err := reg.Register("alice", "Alice", "dev", nil, "", "")
	require.NoError(t, err)
	_, err = reg.Register("bob", "Bob", "qa", nil, "", "")
	require.NoError(t, err)

	_, err = mb.SendMessage("alice", "Bob", "ping", "", "")
	require.NoError(t, err)

	require.NoError(t, reg.Unregister("bob", "done for the day"))
	assert.Equal(t, 1, reg.Count())
	_, ok := reg.BySession("bob")
	assert.False(t, ok)

	err = reg.Unregister("bob", "")
	require.Error(t, err)
}

func TestPersistence_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	reg := newPersistentRegistry(t, dir)

	_, err := reg.Register("alice", "Alice", "dev", []string{"go"}, "", "")
	require.NoError(t, err)
	mb := NewMailbox(reg)
	_, err = reg.Register("bob", "Bob", "qa", nil, "", "")
	require.NoError(t, err)
	_, err = mb.SendEmail("alice", []string{"bob"}, nil, nil, "Hi", "hello", "", nil)
	require.NoError(t, err)

	// A fresh registry over the same directory sees everything,
	// nested queues included.
	fresh := newPersistentRegistry(t, dir)
	require.NoError(t, fresh.Load())
	assert.Equal(t, 2, fresh.Count())
	bob, ok := fresh.BySession("bob")
	require.True(t, ok)
	require.Len(t, bob.Inbox, 1)
	assert.Equal(t, "Hi", bob.Inbox[0].Subject)
}

func TestPersistence_SkipsCorruptEntries(t *testing.T) {
	dir := t.TempDir()

	doc := `{
  "saved_at": "2026-01-01T00:00:00Z",
  "agents": [
    {"id": "alice_1", "session_name": "alice", "name": "Alice", "role": "dev", "status": "active"},
    {"id": 42, "session_name": true},
    {"id": "noname_1", "name": "No Session"},
    {"id": "bob_1", "session_name": "bob", "name": "Bob", "role": "qa", "status": "idle"}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirectoryFile), []byte(doc), 0600))

	reg := newPersistentRegistry(t, dir)
	require.NoError(t, reg.Load())

	// The undecodable and keyless entries are skipped, not fatal.
	assert.Equal(t, 2, reg.Count())
	_, ok := reg.BySession("alice")
	assert.True(t, ok)
	_, ok = reg.BySession("bob")
	assert.True(t, ok)
}

func TestPersistence_MissingFileStartsEmpty(t *testing.T) {
	reg := newPersistentRegistry(t, t.TempDir())
	require.NoError(t, reg.Load())
	assert.Equal(t, 0, reg.Count())
}
