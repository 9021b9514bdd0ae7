package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Tracing(cfg.Tracing.ServiceName))
	r.Use(RequestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24, HttpOnly: true, SameSite: http.SameSiteLaxMode})

	web := r.Group("/")
	web.Use(sessions.Sessions("RoomsSessions", store))
	web.Use(ClientTokenMiddleware())
	web.Use(ViewerMiddleware(cfg.Auth.JWTSecret, cfg.Auth.ViewerCookie))

	web.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, roomsPath)
	})

	bbb := web.Group(basePath)
	bbb.GET("/servers", h.listServers)
	bbb.GET("/servers/:id", h.showServer)

	rooms := bbb.Group("/rooms")
	rooms.GET("", h.listRooms)
	rooms.POST("", h.createRoom)
	rooms.GET("/new", h.newRoom)
	rooms.GET("/:id", h.showRoom)
	rooms.GET("/:id/edit", h.editRoom)
	rooms.PUT("/:id", h.updateRoom)
	rooms.PATCH("/:id", h.updateRoom)
	rooms.DELETE("/:id", h.destroyRoom)
	rooms.GET("/:id/running", h.running)
	rooms.GET("/:id/end", h.end)
	rooms.GET("/:id/join", h.join)
	rooms.GET("/:id/join_mobile", h.joinMobile)
	rooms.GET("/:id/invite", h.invite)
	rooms.POST("/:id/auth", h.auth)
	rooms.POST("/:id/fetch_recordings", h.fetchRecordings)
	rooms.GET("/:id/recordings", h.recordings)
	rooms.GET("/:id/status/ws", h.statusFeed(ctx))

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func (h *Handler) ready(c *gin.Context) {
	if h.Ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.Ready(ctx); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("not ready")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
