package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/app"
	"github.com/avatarlab/actiond/internal/config"
	"github.com/avatarlab/actiond/internal/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades HTTP requests and runs the per-connection lifecycle:
// session creation, welcome, pumps, and the single guaranteed teardown.
type Controller struct {
	cfg    *config.Config
	router *app.Router
}

func NewController(cfg *config.Config, router *app.Router) *Controller {
	return &Controller{cfg: cfg, router: router}
}

func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	// Identity is per connection, not per browser: two tabs sharing the
	// client token cookie still get distinct sessions.
	id := uuid.NewString()
	log.Info().Str("module", "ws").Str("client", id).
		Str("token", c.GetString("client_token")).Msg("new connection")

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}

	conn := NewConn(id, sock)
	sess := core.NewSession(conn, core.PlaybackConfig{
		MinSteps: ctl.cfg.Playback.MinSteps,
		MaxSteps: ctl.cfg.Playback.MaxSteps,
		MinDelay: ctl.cfg.Playback.MinDelay,
		MaxDelay: ctl.cfg.Playback.MaxDelay,
	})
	ctl.router.Register(sess)

	connCtx, cancel := context.WithCancel(ctx)
	pongWait := ctl.cfg.PingPeriod * 10 / 9

	go conn.WritePump(connCtx, ctl.cfg.PingPeriod)
	go func() {
		defer cancel()
		// Teardown fires on every exit path of the read loop: normal
		// close, transport error, or server shutdown via ctx.
		defer ctl.router.Disconnect(sess)
		conn.ReadPump(connCtx, ctl.cfg.ReadLimit, pongWait, func(data []byte) {
			ctl.router.HandleFrame(sess, data)
		})
	}()
}
