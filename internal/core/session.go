package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/protocol"
)

var ErrTaskNotFound = errors.New("no playback task for actionGroupID")

// Session is the per-connection aggregate: the connection itself, the table
// of running playback tasks keyed by action group, and the single "current"
// group. The mutex guards the table only; it is never held across the
// playback loop's inter-step delay.
type Session struct {
	conn Conn

	mu      sync.Mutex
	tasks   map[protocol.GroupID]*PlaybackTask
	current protocol.GroupID

	cfg      PlaybackConfig
	teardown sync.Once
}

func NewSession(conn Conn, cfg PlaybackConfig) *Session {
	return &Session{
		conn:  conn,
		tasks: make(map[protocol.GroupID]*PlaybackTask),
		cfg:   cfg,
	}
}

func (s *Session) ID() string { return s.conn.ID() }
func (s *Session) Conn() Conn { return s.conn }

// StartAction cancels whatever the session is currently playing, creates a
// fresh task under gid and marks it current. The returned task is not yet
// running; the caller starts it after the start ack is on its way.
func (s *Session) StartAction(gid protocol.GroupID) *PlaybackTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tasks[gid]; ok {
		prev.Cancel()
		delete(s.tasks, gid)
	}
	if s.current != "" && s.current != gid {
		if prev, ok := s.tasks[s.current]; ok {
			prev.Cancel()
			delete(s.tasks, s.current)
		}
	}

	task := newPlaybackTask(gid, s.conn, s.cfg, s.removeCompleted)
	s.tasks[gid] = task
	s.current = gid
	log.Info().Str("module", "core.session").Str("client", s.ID()).
		Str("group", string(gid)).Msg("action started")
	return task
}

// StopAction cancels the task under gid. ErrTaskNotFound when no such task
// is running.
func (s *Session) StopAction(gid protocol.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[gid]
	if !ok {
		return ErrTaskNotFound
	}
	task.Cancel()
	delete(s.tasks, gid)
	if s.current == gid {
		s.current = ""
	}
	log.Info().Str("module", "core.session").Str("client", s.ID()).
		Str("group", string(gid)).Msg("action stopped")
	return nil
}

// ResetActions cancels every task the session owns. Safe with zero tasks.
func (s *Session) ResetActions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tasks)
	for gid, task := range s.tasks {
		task.Cancel()
		delete(s.tasks, gid)
	}
	s.current = ""
	if n > 0 {
		log.Info().Str("module", "core.session").Str("client", s.ID()).
			Int("cancelled", n).Msg("actions reset")
	}
	return n
}

// ActiveTasks is the number of running playback tasks.
func (s *Session) ActiveTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CurrentGroup is the action group marked current, empty when none.
func (s *Session) CurrentGroup() protocol.GroupID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Teardown cancels all tasks best-effort and closes the connection. Runs at
// most once no matter how many exit paths reach it.
func (s *Session) Teardown() {
	s.teardown.Do(func() {
		s.ResetActions()
		s.conn.Close()
	})
}

// removeCompleted drops a naturally finished task from the table. The
// identity check keeps a stale completion from evicting a newer task that
// reused the same group key.
func (s *Session) removeCompleted(task *PlaybackTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.tasks[task.GroupID]; ok && cur == task {
		delete(s.tasks, task.GroupID)
		if s.current == task.GroupID {
			s.current = ""
		}
	}
}
