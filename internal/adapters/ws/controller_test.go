package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adhttp "github.com/avatarlab/actiond/internal/adapters/http"
	"github.com/avatarlab/actiond/internal/app"
	"github.com/avatarlab/actiond/internal/config"
	"github.com/avatarlab/actiond/internal/protocol"
)

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type staticIPs struct{}

func (staticIPs) LocalIPv4s() []string { return []string{"10.0.0.5"} }

func testConfig() *config.Config {
	return &config.Config{
		Mode:       "release",
		Host:       "127.0.0.1",
		Port:       3100,
		ReadLimit:  32768,
		PingPeriod: 30 * time.Second,
		Secret:     "test-secret",
		Playback: config.PlaybackConfig{
			MinSteps: 3,
			MaxSteps: 3,
			MinDelay: time.Millisecond,
			MaxDelay: 2 * time.Millisecond,
		},
	}
}

func startServer(t *testing.T) (*httptest.Server, *app.Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testConfig()
	reg := app.NewRegistry()
	hub := app.NewHub(reg)
	rt := app.NewRouter(reg, hub, app.ServerMeta{Host: cfg.Host, Port: cfg.Port}, staticIPs{})

	srv := httptest.NewServer(adhttp.SetupRouter(ctx, cfg, rt, reg, staticIPs{}))
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readEnvelope(t *testing.T, c *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func sendJSON(t *testing.T, c *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestConnectAndEcho(t *testing.T) {
	srv, reg := startServer(t)
	c := dial(t, srv)

	welcome := readEnvelope(t, c)
	require.Equal(t, protocol.EventWelcome, welcome.Type)
	assert.NotZero(t, welcome.Timestamp)
	require.Eventually(t, func() bool { return reg.Count() == 1 }, time.Second, 10*time.Millisecond)

	sendJSON(t, c, `{"type":"echo","message":"hi"}`)

	ack := readEnvelope(t, c)
	require.Equal(t, protocol.EventAck, ack.Type, "ack must arrive before the handler's response")
	var ackData protocol.AckData
	require.NoError(t, json.Unmarshal(ack.Data, &ackData))
	assert.Equal(t, protocol.StatusProcessed, ackData.Status)

	echo := readEnvelope(t, c)
	require.Equal(t, protocol.EventEchoResponse, echo.Type)
	var echoData protocol.EchoResponseData
	require.NoError(t, json.Unmarshal(echo.Data, &echoData))
	assert.Equal(t, "hi", echoData.OriginalMessage)
}

func TestPlaybackOverWire(t *testing.T) {
	srv, _ := startServer(t)
	c := dial(t, srv)
	readEnvelope(t, c) // welcome

	sendJSON(t, c, `{"type":"actionStart","actionGroupID":5}`)

	require.Equal(t, protocol.EventAck, readEnvelope(t, c).Type)
	require.Equal(t, protocol.EventActionStartAck, readEnvelope(t, c).Type)

	prev := -1.0
	for i := 0; i < 3; i++ {
		env := readEnvelope(t, c)
		require.Equal(t, protocol.EventProgress, env.Type)
		var p protocol.ProgressData
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Greater(t, p.Value, prev)
		prev = p.Value
	}
	assert.Equal(t, 100.0, prev)

	end := readEnvelope(t, c)
	require.Equal(t, protocol.EventActionEnd, end.Type)
	var endData protocol.ProgressData
	require.NoError(t, json.Unmarshal(end.Data, &endData))
	assert.Equal(t, 100.0, endData.Value)
}

func TestBroadcastBetweenConnections(t *testing.T) {
	srv, reg := startServer(t)

	a := dial(t, srv)
	readEnvelope(t, a) // welcome
	b := dial(t, srv)
	readEnvelope(t, b) // welcome
	require.Eventually(t, func() bool { return reg.Count() == 2 }, time.Second, 10*time.Millisecond)

	sendJSON(t, a, `{"type":"broadcast","message":"hello"}`)

	env := readEnvelope(t, b)
	require.Equal(t, protocol.EventBroadcast, env.Type)
	var data protocol.BroadcastData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "hello", data.Message)
	assert.NotEmpty(t, data.FromClient)

	// the sender sees only its ack, never its own broadcast
	require.Equal(t, protocol.EventAck, readEnvelope(t, a).Type)
	sendJSON(t, a, `{"type":"heartbeat"}`)
	require.Equal(t, protocol.EventAck, readEnvelope(t, a).Type)
	require.Equal(t, protocol.EventHeartbeatAck, readEnvelope(t, a).Type)
}

func TestDisconnectTearsDownSession(t *testing.T) {
	srv, reg := startServer(t)

	a := dial(t, srv)
	readEnvelope(t, a)
	sendJSON(t, a, `{"type":"actionStart","actionGroupID":"g1"}`)
	require.Equal(t, protocol.EventAck, readEnvelope(t, a).Type)
	require.Equal(t, protocol.EventActionStartAck, readEnvelope(t, a).Type)

	require.NoError(t, a.Close())

	require.Eventually(t, func() bool { return reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond,
		"disconnect must remove the session from the registry")
}

func TestServerInfoEndpoint(t *testing.T) {
	srv, _ := startServer(t)
	c := dial(t, srv)
	readEnvelope(t, c)

	sendJSON(t, c, `{"type":"get_server_info"}`)
	require.Equal(t, protocol.EventAck, readEnvelope(t, c).Type)

	env := readEnvelope(t, c)
	require.Equal(t, protocol.EventServerInfo, env.Type)
	var info protocol.ServerInfoData
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "127.0.0.1", info.Host)
	assert.Equal(t, 3100, info.Port)
	assert.Equal(t, "ws", info.Protocol)
	assert.Equal(t, 1, info.ConnectedClients)
	assert.Equal(t, []string{"10.0.0.5"}, info.ServerIPs)
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	srv, _ := startServer(t)
	c := dial(t, srv)
	readEnvelope(t, c)

	sendJSON(t, c, `this is not json`)

	ack := readEnvelope(t, c)
	require.Equal(t, protocol.EventAck, ack.Type)
	var ackData protocol.AckData
	require.NoError(t, json.Unmarshal(ack.Data, &ackData))
	assert.Equal(t, protocol.StatusError, ackData.Status)

	require.Equal(t, protocol.EventError, readEnvelope(t, c).Type)

	// connection survives: the next command still works
	sendJSON(t, c, `{"type":"heartbeat"}`)
	require.Equal(t, protocol.EventAck, readEnvelope(t, c).Type)
	require.Equal(t, protocol.EventHeartbeatAck, readEnvelope(t, c).Type)
}
