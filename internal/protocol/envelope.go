// Package protocol defines the wire format spoken over the action socket:
// inbound commands and the outbound event envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event types pushed by the server.
const (
	EventWelcome        = "welcome"
	EventAck            = "ack"
	EventActionStartAck = "actionStartAck"
	EventActionStopAck  = "actionStopAck"
	EventActionResetAck = "actionResetAck"
	EventProgress       = "progress"
	EventActionEnd      = "actionEnd"
	EventEchoResponse   = "echo_response"
	EventBroadcast      = "broadcast"
	EventServerInfo     = "server_info"
	EventHeartbeatAck   = "heartbeatAck"
	EventError          = "error"
	EventUnknownCommand = "unknown_command"
)

// Ack statuses.
const (
	StatusProcessed = "processed"
	StatusError     = "error"
)

// GroupID is the client-supplied opaque key for one playback request.
// Clients send it as a JSON string or number; both are kept as the string
// form and numeric keys round-trip back as numbers.
type GroupID string

// ResetGroupID is the placeholder key carried by actionResetAck.
const ResetGroupID GroupID = "0"

func (g *GroupID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*g = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*g = GroupID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*g = GroupID(n.String())
		return nil
	}
	return fmt.Errorf("actionGroupID must be a string or number, got %s", b)
}

func (g GroupID) MarshalJSON() ([]byte, error) {
	if g == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(g), 10, 64); err == nil {
		return []byte(g), nil
	}
	return json.Marshal(string(g))
}

// Envelope is the shape of every outbound event. Timestamp is epoch millis
// taken when the event is built, not when it hits the wire.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func newEnvelope(typ string, data any) Envelope {
	return Envelope{
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

type WelcomeData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AckData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ActionAckData struct {
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	ActionGroupID GroupID `json:"actionGroupID"`
}

type ProgressData struct {
	Value         float64 `json:"value"`
	Message       string  `json:"message"`
	ActionGroupID GroupID `json:"actionGroupID"`
}

type EchoResponseData struct {
	OriginalMessage string `json:"original_message"`
	ServerNote      string `json:"server_note"`
}

type BroadcastData struct {
	Message    string `json:"message"`
	FromClient string `json:"from_client"`
}

type ServerInfoData struct {
	Host             string   `json:"host"`
	Port             int      `json:"port"`
	Protocol         string   `json:"protocol"`
	ConnectedClients int      `json:"connected_clients"`
	ServerIPs        []string `json:"server_ips"`
}

type HeartbeatAckData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorData struct {
	Message       string  `json:"message"`
	ActionGroupID GroupID `json:"actionGroupID"`
}

// DecodeErrorData carries the raw payload back on parse failures.
type DecodeErrorData struct {
	Message         string `json:"message"`
	OriginalMessage string `json:"original_message"`
}

type UnknownCommandData struct {
	ReceivedMessage any    `json:"received_message"`
	Note            string `json:"note"`
}

func Welcome(clientID string) Envelope {
	return newEnvelope(EventWelcome, WelcomeData{
		Status:  "connected",
		Message: fmt.Sprintf("Hello %s, welcome to the action server!", clientID),
	})
}

func Ack(status, message string) Envelope {
	return newEnvelope(EventAck, AckData{Status: status, Message: message})
}

func ActionStartAck(gid GroupID) Envelope {
	return newEnvelope(EventActionStartAck, ActionAckData{
		Status:        "started",
		Message:       "playback started",
		ActionGroupID: gid,
	})
}

func ActionStopAck(gid GroupID) Envelope {
	return newEnvelope(EventActionStopAck, ActionAckData{
		Status:        "stopped",
		Message:       "playback stopped",
		ActionGroupID: gid,
	})
}

func ActionResetAck() Envelope {
	return newEnvelope(EventActionResetAck, ActionAckData{
		Status:        "reset",
		Message:       "all playback stopped",
		ActionGroupID: ResetGroupID,
	})
}

func Progress(value float64, gid GroupID) Envelope {
	return newEnvelope(EventProgress, ProgressData{
		Value:         value,
		Message:       "playing",
		ActionGroupID: gid,
	})
}

func ActionEnd(gid GroupID) Envelope {
	return newEnvelope(EventActionEnd, ProgressData{
		Value:         100.0,
		Message:       "playback finished",
		ActionGroupID: gid,
	})
}

func EchoResponse(original string) Envelope {
	return newEnvelope(EventEchoResponse, EchoResponseData{
		OriginalMessage: original,
		ServerNote:      "echo response from server",
	})
}

func Broadcast(message, fromClient string) Envelope {
	return newEnvelope(EventBroadcast, BroadcastData{
		Message:    message,
		FromClient: fromClient,
	})
}

func ServerInfo(host string, port int, clients int, ips []string) Envelope {
	if ips == nil {
		ips = []string{}
	}
	return newEnvelope(EventServerInfo, ServerInfoData{
		Host:             host,
		Port:             port,
		Protocol:         "ws",
		ConnectedClients: clients,
		ServerIPs:        ips,
	})
}

func HeartbeatAck() Envelope {
	return newEnvelope(EventHeartbeatAck, HeartbeatAckData{
		Status:  "alive",
		Message: "server is alive",
	})
}

// ErrorEvent reports a command-level failure. gid may be empty when the
// client never supplied one; it is serialized as null in that case.
func ErrorEvent(message string, gid GroupID) Envelope {
	return newEnvelope(EventError, ErrorData{Message: message, ActionGroupID: gid})
}

// DecodeError reports an unparseable frame, echoing the raw payload.
func DecodeError(raw []byte) Envelope {
	return newEnvelope(EventError, DecodeErrorData{
		Message:         "invalid message format",
		OriginalMessage: string(raw),
	})
}

func UnknownCommand(received any) Envelope {
	return newEnvelope(EventUnknownCommand, UnknownCommandData{
		ReceivedMessage: received,
		Note:            "unknown message type",
	})
}
