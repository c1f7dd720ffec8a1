package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarlab/actiond/internal/protocol"
)

func TestStartActionSupersedesCurrent(t *testing.T) {
	conn := newFakeConn("c1")
	sess := NewSession(conn, fastPlayback())

	first := sess.StartAction("g1")
	second := sess.StartAction("g2")

	assert.True(t, first.Cancelled(), "starting another group must cancel the current task")
	assert.False(t, second.Cancelled())
	assert.Equal(t, protocol.GroupID("g2"), sess.CurrentGroup())
	assert.Equal(t, 1, sess.ActiveTasks())
}

func TestStartActionDuplicateKey(t *testing.T) {
	conn := newFakeConn("c1")
	sess := NewSession(conn, fastPlayback())

	first := sess.StartAction("g1")
	second := sess.StartAction("g1")

	assert.True(t, first.Cancelled())
	assert.False(t, second.Cancelled())
	assert.Equal(t, 1, sess.ActiveTasks())
}

func TestStopAction(t *testing.T) {
	conn := newFakeConn("c1")
	sess := NewSession(conn, fastPlayback())

	t.Run("unknown key", func(t *testing.T) {
		require.ErrorIs(t, sess.StopAction("nope"), ErrTaskNotFound)
	})

	t.Run("known key stops and clears current", func(t *testing.T) {
		task := sess.StartAction("g1")
		require.NoError(t, sess.StopAction("g1"))
		assert.True(t, task.Cancelled())
		assert.Equal(t, 0, sess.ActiveTasks())
		assert.Empty(t, sess.CurrentGroup())
	})

	t.Run("second stop on same key errors again", func(t *testing.T) {
		require.ErrorIs(t, sess.StopAction("g1"), ErrTaskNotFound)
	})
}

func TestResetActions(t *testing.T) {
	conn := newFakeConn("c1")
	sess := NewSession(conn, fastPlayback())

	t.Run("idempotent with zero tasks", func(t *testing.T) {
		assert.Equal(t, 0, sess.ResetActions())
	})

	t.Run("cancels everything", func(t *testing.T) {
		task := sess.StartAction("g1")
		assert.Equal(t, 1, sess.ResetActions())
		assert.True(t, task.Cancelled())
		assert.Equal(t, 0, sess.ActiveTasks())
		assert.Empty(t, sess.CurrentGroup())
	})
}

func TestTeardownRunsOnce(t *testing.T) {
	conn := newFakeConn("c1")
	sess := NewSession(conn, fastPlayback())

	task := sess.StartAction("g1")
	sess.Teardown()
	sess.Teardown()

	assert.True(t, task.Cancelled())
	assert.Equal(t, 0, sess.ActiveTasks())
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Equal(t, 1, conn.closed, "teardown must close the connection exactly once")
}

func TestCompletedTaskDoesNotEvictReplacement(t *testing.T) {
	conn := newFakeConn("c1")
	sess := NewSession(conn, fastPlayback())

	stale := sess.StartAction("g1")
	replacement := sess.StartAction("g1")

	// a stale completion callback must not remove the newer task
	sess.removeCompleted(stale)
	assert.Equal(t, 1, sess.ActiveTasks())
	assert.Equal(t, protocol.GroupID("g1"), sess.CurrentGroup())

	sess.removeCompleted(replacement)
	assert.Equal(t, 0, sess.ActiveTasks())
	assert.Empty(t, sess.CurrentGroup())
	assert.True(t, stale.Cancelled())
}
