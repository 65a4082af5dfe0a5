package router

import (
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	"github.com/NomadCrew/nomad-crew-planner/handlers"
	"github.com/NomadCrew/nomad-crew-planner/internal/websocket"
	"github.com/NomadCrew/nomad-crew-planner/middleware"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	wsConnectionsPerClient = 5
	wsRateWindow           = time.Minute
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config        *config.Config
	HealthHandler *handlers.HealthHandler
	PageHandler   *handlers.PageHandler
	TokenHandler  *handlers.SocketTokenHandler
	WSHandler     *websocket.Handler
	// RedisClient enables the page socket rate limit; nil disables it.
	RedisClient redis.UniversalClient
	// CurrentUser returns the logged-in user the page socket is checked against.
	CurrentUser func() *types.User
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.SecurityHeadersMiddleware(&deps.Config.Server))
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Page navigation
	r.GET("/", deps.PageHandler.RenderHandler)
	r.GET("/index/index/trip/:tripId/user/:userId", deps.PageHandler.RenderTripHandler)

	api := r.Group("/api")
	{
		api.GET("/session", deps.PageHandler.SessionHandler)
		api.POST("/logout", deps.PageHandler.LogoutHandler)
		api.GET("/ws-token", deps.TokenHandler.IssueTokenHandler)
	}

	// Page socket
	var wsChain []gin.HandlerFunc
	if secret := deps.Config.Auth.AppSecret; secret != "" && deps.CurrentUser != nil {
		wsChain = append(wsChain, middleware.WSSocketTokenAuth(secret, deps.CurrentUser))
	}
	if deps.RedisClient != nil {
		wsChain = append(wsChain, middleware.WSRateLimiter(deps.RedisClient, wsConnectionsPerClient, wsRateWindow))
	}
	wsChain = append(wsChain, deps.WSHandler.HandleWebSocket)
	r.GET("/ws", wsChain...)

	return r
}
