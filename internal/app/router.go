package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/core"
	"github.com/avatarlab/actiond/internal/protocol"
)

// AddrProvider supplies the local reachable addresses reported by
// get_server_info.
type AddrProvider interface {
	LocalIPv4s() []string
}

// ServerMeta is the advertised listen endpoint.
type ServerMeta struct {
	Host string
	Port int
}

// Router decodes inbound frames, always answers with an ack first, then
// dispatches to the matching handler. One Router serves all sessions;
// per-session ordering comes from each connection's single read loop.
type Router struct {
	reg  *Registry
	hub  *Hub
	meta ServerMeta
	ips  AddrProvider
}

func NewRouter(reg *Registry, hub *Hub, meta ServerMeta, ips AddrProvider) *Router {
	return &Router{reg: reg, hub: hub, meta: meta, ips: ips}
}

// Register adds the session and greets the client.
func (r *Router) Register(sess *core.Session) {
	r.reg.Add(sess)
	_ = sess.Conn().TrySend(protocol.Welcome(sess.ID()))
}

// Disconnect runs the full teardown: cancel all playback tasks, close the
// connection, drop the session from the registry. Safe to call from any
// exit path; effects run once.
func (r *Router) Disconnect(sess *core.Session) {
	sess.Teardown()
	if r.reg.Remove(sess.ID()) {
		log.Info().Str("module", "app.router").Str("client", sess.ID()).
			Int("connections", r.reg.Count()).Msg("client disconnected")
	}
}

// HandleFrame processes one inbound frame to completion. The ack always
// goes out before any handler effect is observable on the wire.
func (r *Router) HandleFrame(sess *core.Session, data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("client", sess.ID()).Msg("undecodable frame")
		r.send(sess, protocol.Ack(protocol.StatusError, "invalid message format, failed to parse"))
		r.send(sess, protocol.DecodeError(data))
		return
	}

	log.Info().Str("module", "app.router").Str("client", sess.ID()).
		Str("type", cmd.Type).Msg("frame received")
	r.send(sess, protocol.Ack(protocol.StatusProcessed,
		fmt.Sprintf("message %q processed", cmd.AckMessage())))

	switch cmd.Type {
	case protocol.CmdActionStart:
		r.handleActionStart(sess, cmd)
	case protocol.CmdActionStop:
		r.handleActionStop(sess, cmd)
	case protocol.CmdActionReset:
		sess.ResetActions()
		r.send(sess, protocol.ActionResetAck())
	case protocol.CmdEcho:
		r.send(sess, protocol.EchoResponse(cmd.Message))
	case protocol.CmdBroadcast:
		r.handleBroadcast(sess, cmd)
	case protocol.CmdGetServerInfo:
		r.send(sess, protocol.ServerInfo(r.meta.Host, r.meta.Port, r.reg.Count(), r.ips.LocalIPv4s()))
	case protocol.CmdHeartbeat:
		r.send(sess, protocol.HeartbeatAck())
	default:
		r.send(sess, protocol.UnknownCommand(cmd.Fields))
	}
}

func (r *Router) handleActionStart(sess *core.Session, cmd *protocol.Command) {
	if cmd.ActionGroupID == "" {
		r.send(sess, protocol.ErrorEvent("missing actionGroupID", ""))
		return
	}
	task := sess.StartAction(cmd.ActionGroupID)
	r.send(sess, protocol.ActionStartAck(cmd.ActionGroupID))
	task.Start()
}

func (r *Router) handleActionStop(sess *core.Session, cmd *protocol.Command) {
	if cmd.ActionGroupID == "" {
		r.send(sess, protocol.ErrorEvent("missing actionGroupID", ""))
		return
	}
	if err := sess.StopAction(cmd.ActionGroupID); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			r.send(sess, protocol.ErrorEvent(
				fmt.Sprintf("no playback task found for actionGroupID %s", cmd.ActionGroupID),
				cmd.ActionGroupID))
			return
		}
		r.send(sess, protocol.ErrorEvent(err.Error(), cmd.ActionGroupID))
		return
	}
	r.send(sess, protocol.ActionStopAck(cmd.ActionGroupID))
}

func (r *Router) handleBroadcast(sess *core.Session, cmd *protocol.Command) {
	res := r.hub.Broadcast(sess.ID(), protocol.Broadcast(cmd.Message, sess.ID()))
	// A failed send means the peer is gone: run the full disconnect path so
	// its tasks are cancelled too, not just the registry entry.
	for _, dropped := range res.Dropped {
		log.Warn().Str("module", "app.router").Str("client", dropped.ID()).Msg("broadcast recipient gone")
		r.Disconnect(dropped)
	}
}

func (r *Router) send(sess *core.Session, env protocol.Envelope) {
	if err := sess.Conn().TrySend(env); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("client", sess.ID()).
			Str("type", env.Type).Msg("send failed")
	}
}
