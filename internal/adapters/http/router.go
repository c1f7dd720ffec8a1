package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/adapters/ws"
	"github.com/avatarlab/actiond/internal/app"
	"github.com/avatarlab/actiond/internal/config"
	"github.com/avatarlab/actiond/internal/protocol"
)

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, rt *app.Router, reg *app.Registry, ips app.AddrProvider) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ActiondSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	ctl := ws.NewController(cfg, rt)

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	// REST mirror of the server_info event, handy for probes.
	api.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, protocol.ServerInfoData{
			Host:             cfg.Host,
			Port:             cfg.Port,
			Protocol:         "ws",
			ConnectedClients: reg.Count(),
			ServerIPs:        ips.LocalIPv4s(),
		})
	})

	return r
}
