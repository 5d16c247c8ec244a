package notepad

import (
	"io"
	"log"
	"testing"
	"time"

	"agentdir/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPad(t *testing.T, dir string) *Pad {
	t.Helper()
	gw, err := store.New(dir, nil)
	require.NoError(t, err)
	return NewPad(gw, log.New(io.Discard, "", 0))
}

func TestWrite_UpsertsByTitle(t *testing.T) {
	p := newTestPad(t, "")

	note, err := p.Write("alice", "standup", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", note.Content)

	updated, err := p.Write("alice", "standup", "v2")
	require.NoError(t, err)
	assert.Equal(t, note.ID, updated.ID)
	assert.Equal(t, "v2", updated.Content)

	got, err := p.Read("alice", "standup")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Len(t, p.List("alice"), 1)

	_, err = p.Write("alice", "", "content")
	require.Error(t, err)
}

func TestList_MostRecentlyUpdatedFirst(t *testing.T) {
	p := newTestPad(t, "")

	now := time.Unix(1700000000, 0)
	p.clock = func() time.Time { return now }
	_, err := p.Write("alice", "older", "a")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = p.Write("alice", "newer", "b")
	require.NoError(t, err)

	// Touching the older note moves it back to the front.
	now = now.Add(time.Minute)
	_, err = p.Write("alice", "older", "a2")
	require.NoError(t, err)

	notes := p.List("alice")
	require.Len(t, notes, 2)
	assert.Equal(t, "older", notes[0].Title)
	assert.Equal(t, "newer", notes[1].Title)
}

func TestDelete(t *testing.T) {
	p := newTestPad(t, "")

	_, err := p.Write("alice", "scratch", "x")
	require.NoError(t, err)
	require.NoError(t, p.Delete("alice", "scratch"))

	_, err = p.Read("alice", "scratch")
	require.Error(t, err)
	err = p.Delete("alice", "scratch")
	require.Error(t, err)
}

func TestAgentsAreIsolated(t *testing.T) {
	p := newTestPad(t, "")

	_, err := p.Write("alice", "secret", "mine")
	require.NoError(t, err)

	_, err = p.Read("bob", "secret")
	require.Error(t, err)
	assert.Empty(t, p.List("bob"))
}

func TestPersistence_PerAgentDocuments(t *testing.T) {
	dir := t.TempDir()
	p := newTestPad(t, dir)

	_, err := p.Write("alice", "standup", "v1")
	require.NoError(t, err)

	fresh := newTestPad(t, dir)
	got, err := fresh.Read("alice", "standup")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
}
