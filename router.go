package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloudboard/api/config"
	"cloudboard/api/handlers"
	"cloudboard/api/middleware"
)

type routes struct {
	auth      *handlers.AuthHandlers
	domains   *handlers.DomainHandlers
	users     *handlers.UserHandlers
	events    *handlers.EventHandlers
	analytics *handlers.AnalyticsHandlers
	system    *handlers.SystemHandlers
}

func newRouter(cfg *config.Config, zapLogger *zap.Logger, auth *middleware.Authenticator, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zapLogger))
	r.Use(middleware.CORSMiddleware(cfg.FrontendOrigins, "/events/track", "/tracker.js"))

	r.GET("/", h.system.Welcome)
	r.GET("/health", h.system.Health)
	r.GET("/tracker.js", h.system.Tracker)

	authGroup := r.Group("/auth")
	{
		// No credentials required.
		authGroup.POST("/register", h.auth.Register)
		authGroup.POST("/login", h.auth.Login)
		authGroup.POST("/refresh", h.auth.Refresh)

		userOnly := authGroup.Group("/", auth.AuthRequired(), middleware.RequireUser())
		userOnly.POST("/logout", h.auth.Logout)
		userOnly.POST("/logout-all", h.auth.LogoutAll)
		userOnly.POST("/api-key", h.auth.IssueAPIKey)
		userOnly.POST("/domain-token", h.auth.IssueDomainToken)
	}

	protected := r.Group("/", auth.AuthRequired())
	{
		domains := protected.Group("/domains")
		domains.GET("", h.domains.List)
		domains.GET("/:id", h.domains.Get)
		domains.POST("", middleware.RequireUser(), h.domains.Create)

		users := protected.Group("/users", middleware.RequireUser())
		users.GET("", h.users.List)
		users.GET("/me", h.users.Me)
		users.GET("/:id", h.users.Get)

		events := protected.Group("/events")
		events.POST("/track", h.events.Track)
		events.GET("", h.events.List)
		events.GET("/latest", h.events.Latest)
		events.GET("/:id", h.events.Get)
		events.DELETE("/latest", h.events.DeleteLatest)
		events.DELETE("/:id", h.events.Delete)

		analytics := protected.Group("/analytics")
		analytics.GET("/session", h.analytics.ReconstructSessions)
		analytics.GET("/sessions", h.analytics.ListSessions)
	}

	return r
}
