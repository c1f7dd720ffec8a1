package app

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/avatarlab/actiond/internal/core"
	"github.com/avatarlab/actiond/internal/protocol"
)

// PublishResult reports broadcast delivery: how many recipients took the
// event and which sessions failed and need teardown.
type PublishResult struct {
	SentTo  int
	Dropped []*core.Session
}

// Hub fans an event out to every registered session except the sender.
// Fan-out is best-effort and unordered; failed recipients are returned so
// the caller routes them through the normal disconnect path instead of
// yanking them out of the registry ad hoc.
type Hub struct {
	reg *Registry
}

func NewHub(reg *Registry) *Hub {
	return &Hub{reg: reg}
}

func (h *Hub) Broadcast(senderID string, env protocol.Envelope) PublishResult {
	var (
		mu  sync.Mutex
		res PublishResult
	)

	p := pool.New().WithMaxGoroutines(8)
	for _, sess := range h.reg.Snapshot() {
		if sess.ID() == senderID {
			continue
		}
		p.Go(func() {
			err := sess.Conn().TrySend(env)
			mu.Lock()
			if err != nil {
				res.Dropped = append(res.Dropped, sess)
			} else {
				res.SentTo++
			}
			mu.Unlock()
		})
	}
	p.Wait()

	log.Debug().Str("module", "app.hub").Str("from", senderID).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
