package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// NewServer builds the development backend: REST under /api/v1, the push stream on /ws.
func NewServer(st store.Store, authService *auth.Service, broadcaster *Broadcaster, cfg config.DevServerConfig, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(st, authService, broadcaster, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(st store.Store, authService *auth.Service, broadcaster *Broadcaster, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	requireAuth := AuthMiddleware(authService, logger)
	apiHandlers := NewAPIHandlers(authService, logger)
	channels := NewChannelHandlers(st, broadcaster, logger)
	messages := NewMessageHandlers(st, broadcaster, logger)

	v1 := router.Group("/api/v1")
	v1.POST("/signup", apiHandlers.Signup)
	v1.POST("/login", apiHandlers.Login)

	authed := v1.Group("", requireAuth)
	authed.GET("/channels", channels.ListChannels)
	authed.POST("/channels", channels.CreateChannel)
	authed.PATCH("/channels/:id", channels.RenameChannel)
	authed.DELETE("/channels/:id", channels.RemoveChannel)
	authed.GET("/messages", messages.ListMessages)
	authed.POST("/messages", messages.SendMessage)

	router.GET("/ws", requireAuth, NewWSHandler(broadcaster, logger).Handle)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
