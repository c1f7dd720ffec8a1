// Package app wires the connection registry, the broadcast hub and the
// message router on top of the core session machinery.
package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/core"
)

// Registry tracks live sessions by connection id. Membership mirrors the
// session lifecycle exactly: Add on connect, Remove on teardown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*core.Session)}
}

func (r *Registry) Add(sess *core.Session) {
	r.mu.Lock()
	r.sessions[sess.ID()] = sess
	n := len(r.sessions)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("client", sess.ID()).
		Int("connections", n).Msg("session registered")
}

// Remove reports whether the session was still registered, so callers can
// keep teardown side effects single-shot.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.registry").Str("client", id).
			Int("connections", n).Msg("session removed")
	}
	return ok
}

func (r *Registry) Get(id string) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot copies the live set so callers can iterate without holding the
// lock while sending.
func (r *Registry) Snapshot() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
