package pairing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestEnsurePendingIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	code1, created1, err := m.EnsurePending("100", "alice", "Alice")
	require.NoError(t, err)
	assert.True(t, created1)
	assert.Len(t, code1, codeLength)

	code2, created2, err := m.EnsurePending("100", "alice", "Alice")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, code1, code2)
}

func TestApproveMovesUserToAllowlist(t *testing.T) {
	m := newTestManager(t)

	code, _, err := m.EnsurePending("100", "alice", "Alice")
	require.NoError(t, err)
	assert.False(t, m.IsApproved("100"))

	userID, err := m.Approve(code)
	require.NoError(t, err)
	assert.Equal(t, "100", userID)
	assert.True(t, m.IsApproved("100"))
	assert.Empty(t, m.ListPending())
}

func TestApproveUnknownCode(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Approve("BOGUS123")
	assert.Error(t, err)
}

func TestRevoke(t *testing.T) {
	m := newTestManager(t)

	code, _, err := m.EnsurePending("100", "", "")
	require.NoError(t, err)
	_, err = m.Approve(code)
	require.NoError(t, err)

	require.NoError(t, m.Revoke("100"))
	assert.False(t, m.IsApproved("100"))

	assert.Error(t, m.Revoke("100"))
}

func TestStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	m1, err := NewManager(dir)
	require.NoError(t, err)
	code, _, err := m1.EnsurePending("100", "alice", "Alice")
	require.NoError(t, err)
	_, err = m1.Approve(code)
	require.NoError(t, err)
	_, _, err = m1.EnsurePending("200", "bob", "Bob")
	require.NoError(t, err)

	m2, err := NewManager(dir)
	require.NoError(t, err)
	assert.True(t, m2.IsApproved("100"))

	pending := m2.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "200", pending[0].UserID)
}

func TestRefreshPicksUpExternalApproval(t *testing.T) {
	dir := t.TempDir()

	daemon, err := NewManager(dir)
	require.NoError(t, err)
	code, _, err := daemon.EnsurePending("100", "", "")
	require.NoError(t, err)

	// a second process (the CLI) approves the code
	cli, err := NewManager(dir)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond) // ensure a newer mtime
	_, err = cli.Approve(code)
	require.NoError(t, err)

	assert.True(t, daemon.IsApproved("100"))
}

func TestExpiredCodesDropAndReissue(t *testing.T) {
	m := newTestManager(t)
	m.ttl = time.Millisecond

	code1, _, err := m.EnsurePending("100", "", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	code2, created, err := m.EnsurePending("100", "", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, code1, code2)
}

func TestListPendingOldestFirst(t *testing.T) {
	m := newTestManager(t)

	_, _, err := m.EnsurePending("100", "", "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, _, err = m.EnsurePending("200", "", "")
	require.NoError(t, err)

	pending := m.ListPending()
	require.Len(t, pending, 2)
	assert.Equal(t, "100", pending[0].UserID)
	assert.Equal(t, "200", pending[1].UserID)
}
