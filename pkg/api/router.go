package api

import (
	"github.com/gm-agent-org/gm-settings/pkg/api/handler"
	"github.com/gm-agent-org/gm-settings/pkg/api/middleware"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health (no auth required)
	health := handler.Health(s.config.Version)
	s.engine.GET("/health", health)
	s.engine.GET("/healthz", health)

	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(s.config.APIKey))

	settingsHandler := handler.NewSettingsHandler(s.agg)
	v1.GET("/settings", settingsHandler.Get)
	v1.PATCH("/settings", settingsHandler.Patch)
	v1.GET("/settings/diff", settingsHandler.Diff)
	v1.POST("/settings/save", settingsHandler.Save)
	v1.POST("/settings/reload", settingsHandler.Reload)

	v1.POST("/permissions/:list", settingsHandler.AddRule)
	v1.PUT("/permissions/:list/:id", settingsHandler.UpdateRule)
	v1.DELETE("/permissions/:list/:id", settingsHandler.RemoveRule)

	v1.POST("/env", settingsHandler.AddEnv)
	v1.PUT("/env/:id", settingsHandler.UpdateEnv)
	v1.DELETE("/env/:id", settingsHandler.RemoveEnv)

	v1.PUT("/deferred/:module", settingsHandler.StageDeferred)
	v1.PUT("/preferences/startup-intro", settingsHandler.SetStartupIntro)

	providerHandler := handler.NewProviderHandler(s.agg.Provider())
	v1.GET("/provider", providerHandler.Get)
	v1.PUT("/provider/enabled", providerHandler.SetEnabled)
	v1.PUT("/provider/url", providerHandler.SetURL)
	v1.PUT("/provider/model", providerHandler.SelectModel)
	v1.POST("/provider/test", providerHandler.Test)
	v1.POST("/provider/refresh", providerHandler.Refresh)

	notificationHandler := handler.NewNotificationHandler(s.center)
	v1.GET("/notifications", notificationHandler.List)
	v1.GET("/notifications/stream", notificationHandler.Stream)
	v1.DELETE("/notifications/:id", notificationHandler.Dismiss)
}
