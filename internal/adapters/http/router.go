package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/adapters/signal"
	"github.com/dkeye/Duplex/internal/adapters/store/memory"
	"github.com/dkeye/Duplex/internal/config"
	transport "github.com/dkeye/Duplex/internal/transport/http"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware tags every request with a stable per-client token
// kept in the cookie session. Peers that do not keep cookies may send it as
// X-Client-Token instead.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Client-Token")
		if token == "" {
			sess := sessions.Default(c)
			token, _ = sess.Get("ct").(string)
			if token == "" {
				token = genClientToken()
				sess.Set("ct", token)
				if err := sess.Save(); err != nil {
					log.Warn().Err(err).Str("module", "adapters.http").Msg("client token not saved")
				}
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, store *memory.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cs := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("DuplexSessions", cs))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": store.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	rooms := r.Group("/api/rooms")
	handlers := &transport.RoomHandlers{
		Store:   store,
		Limiter: signal.NewRoomRateLimiter(cfg.RoomsPerMinute, time.Minute),
	}
	handlers.Register(rooms)

	watch := &signal.WatchController{
		Store:      store,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}
	rooms.GET("/:id/watch", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws session watch hit")
		watch.HandleSessionWatch(ctx, c)
	})
	rooms.GET("/:id/candidates/:queue/watch", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws candidate watch hit")
		watch.HandleCandidateWatch(ctx, c)
	})

	return r
}
