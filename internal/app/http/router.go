package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	walog "go.mau.fi/whatsmeow/util/log"
)

type RouterOptions struct {
	APIKey string
	// Health serves /live and /ready.
	Health healthcheck.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     walog.Logger
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.Log == nil {
		opts.Log = walog.Noop
	}
	if opts.Health == nil {
		opts.Health = healthcheck.NewHandler()
	}

	r := gin.New()
	r.Use(RequestID(), RequestLogger(opts.Log), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/live", gin.WrapF(opts.Health.LiveEndpoint))
	r.GET("/ready", gin.WrapF(opts.Health.ReadyEndpoint))
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api", APIKey(opts.APIKey))
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/stream", h.SessionsStream)

	sessions := api.Group("/sessions/:session")
	sessions.POST("/init", h.InitSession)
	sessions.GET("/qr", h.GetCode)
	sessions.GET("/qr/stream", h.CodeStream)
	sessions.GET("/status", h.Status)
	sessions.POST("/send", h.SendText)
	sessions.POST("/send-bulk", h.SendBulk)
	sessions.POST("/send-media", h.SendMedia)
	sessions.POST("/disconnect", h.Disconnect)
	sessions.GET("/contacts/:phone", h.Contact)

	return r
}
