// Package core holds the session aggregate and the playback coordinator:
// the per-connection state and the concurrent task machinery around it.
package core

import "github.com/avatarlab/actiond/internal/protocol"

// Conn is the transport endpoint for one client.
// Owned by the Session that wraps it; the Session must Close() it.
type Conn interface {
	ID() string
	TrySend(protocol.Envelope) error
	Close()
}
