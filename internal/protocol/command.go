package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrDecode = errors.New("undecodable command payload")

// Command types accepted from clients.
const (
	CmdActionStart   = "actionStart"
	CmdActionStop    = "actionStop"
	CmdActionReset   = "actionReset"
	CmdEcho          = "echo"
	CmdBroadcast     = "broadcast"
	CmdGetServerInfo = "get_server_info"
	CmdHeartbeat     = "heartbeat"
)

// Command is one decoded inbound frame. Fields keeps the full payload for
// the unknown_command echo; Raw keeps the bytes for ack rendering.
type Command struct {
	Type          string  `json:"type"`
	ActionGroupID GroupID `json:"actionGroupID"`
	Message       string  `json:"message"`

	Raw    json.RawMessage `json:"-"`
	Fields map[string]any  `json:"-"`

	hasMessage bool
}

// AckMessage is what the mandatory ack echoes back: the message field when
// the client sent one, otherwise the rendered frame.
func (c *Command) AckMessage() string {
	if c.hasMessage {
		return c.Message
	}
	return string(c.Raw)
}

// DecodeCommand parses an inbound frame. Any failure wraps ErrDecode; the
// caller answers those with an error ack plus an error event.
func DecodeCommand(data []byte) (*Command, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	cmd.Raw = append(json.RawMessage(nil), data...)
	cmd.Fields = fields
	_, cmd.hasMessage = fields["message"]
	return &cmd, nil
}
