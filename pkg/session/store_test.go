package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	return s
}

func TestTouchCreatesAndCounts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Touch("max:dm:100", "dialog", 0, 100, "in"))
	require.NoError(t, s.Touch("max:dm:100", "dialog", 0, 100, "in"))
	require.NoError(t, s.Touch("max:dm:100", "dialog", 0, 100, "out"))

	session := s.Get("max:dm:100")
	require.NotNil(t, session)
	assert.Equal(t, int64(2), session.InboundCount)
	assert.Equal(t, int64(1), session.OutboundCount)
	assert.Equal(t, int64(100), session.UserID)
	assert.False(t, session.LastActivity.IsZero())
}

func TestTouchUsesInjectedClock(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Touch("max:dm:100", "dialog", 0, 100, "in"))
	assert.Equal(t, fixed, s.Get("max:dm:100").LastActivity)
}

func TestGetUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)
	assert.Nil(t, s.Get("max:dm:404"))
}

func TestSetTitle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Touch("max:group:-55", "chat", -55, 0, "in"))
	require.NoError(t, s.SetTitle("max:group:-55", "Ops room"))
	assert.Equal(t, "Ops room", s.Get("max:group:-55").Title)

	assert.Error(t, s.SetTitle("max:group:-99", "nope"))
}

func TestListOrdersByRecency(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Touch("old", "dialog", 0, 1, "in"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Touch("new", "dialog", 0, 2, "in"))

	sessions := s.List()
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].Key)
	assert.Equal(t, "old", sessions[1].Key)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	s1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Touch("max:dm:100", "dialog", 0, 100, "in"))

	s2, err := NewStore(path)
	require.NoError(t, err)
	session := s2.Get("max:dm:100")
	require.NotNil(t, session)
	assert.Equal(t, int64(1), session.InboundCount)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Touch("max:dm:100", "dialog", 0, 100, "in"))
	require.NoError(t, s.Delete("max:dm:100"))
	assert.Nil(t, s.Get("max:dm:100"))

	// deleting an unknown key is not an error
	require.NoError(t, s.Delete("max:dm:100"))
}
