// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package router wires HTTP route groups and registers controller handlers.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seakee/meshomaton/app/http/controller/debug"
	"github.com/seakee/meshomaton/app/http/middleware"
	"github.com/seakee/meshomaton/internal/debugrecorder"
	"github.com/seakee/meshomaton/internal/engine"
	"github.com/seakee/meshomaton/internal/repository"
	"github.com/sk-pkg/i18n"
	"github.com/sk-pkg/logger"
	"github.com/sk-pkg/redis"
	"gorm.io/gorm"
)

type Core struct {
	Logger     *logger.Manager
	Redis      map[string]*redis.Manager
	I18n       *i18n.Manager
	MysqlDB    map[string]*gorm.DB
	Middleware middleware.Middleware

	Repository    *repository.Repository
	Engine        *engine.Engine
	DebugRecorder *debugrecorder.Recorder
}

// New registers internal and external API groups under /meshomaton.
//
// Parameters:
//   - mux: gin engine that receives route registrations.
//   - core: shared dependency container for handlers.
//
// Returns:
//   - *gin.Engine: the same engine after route registration.
//
// Example:
//
//	router.New(mux, core)
func New(mux *gin.Engine, core *Core) *gin.Engine {
	api := mux.Group("meshomaton")
	// Register internal APIs used by trusted services.
	internal(api.Group("internal"), core)
	// Register external APIs exposed to app clients.
	external(api.Group("external"), core)

	return mux
}

// external registers routes intended for external callers.
//
// Parameters:
//   - api: route group for external endpoints.
//   - core: shared dependency container.
//
// Returns:
//   - None.
func external(api *gin.RouterGroup, core *Core) {
	api.GET("ping", func(c *gin.Context) {
		core.I18n.JSON(c, 0, nil, nil)
	})

	// App health-check endpoints.
	appGroup := api.Group("app")
	appGroup.GET("ping", func(c *gin.Context) {
		core.I18n.JSON(c, 0, nil, nil)
	})

	// Service health-check endpoints.
	serviceGroup := api.Group("service")
	serviceGroup.GET("ping", func(c *gin.Context) {
		core.I18n.JSON(c, 0, nil, nil)
	})

	// Unauthenticated process health and Prometheus scrape endpoints.
	api.GET("healthz", func(c *gin.Context) {
		core.I18n.JSON(c, 0, gin.H{"status": "ok"}, nil)
	})
	api.GET("metrics", gin.WrapH(promhttp.Handler()))
}

// internal registers routes intended for internal service calls.
//
// Parameters:
//   - api: route group for internal endpoints.
//   - core: shared dependency container.
//
// Returns:
//   - None.
func internal(api *gin.RouterGroup, core *Core) {
	api.GET("ping", func(c *gin.Context) {
		core.I18n.JSON(c, 0, nil, nil)
	})

	// Admin health-check endpoints.
	adminGroup := api.Group("admin")
	adminGroup.GET("ping", func(c *gin.Context) {
		core.I18n.JSON(c, 0, nil, nil)
	})

	// Service endpoints.
	serviceGroup := api.Group("service")
	serviceGroup.GET("ping", func(c *gin.Context) {
		core.I18n.JSON(c, 0, nil, nil)
	})

	// Inspection/debug API: automations, per-automation log, and the
	// DebugRecorder trace, gated by a single shared debug token
	// proportionate to a read-only inspection surface.
	debugGroup := api.Group("debug", core.Middleware.CheckDebugToken())
	debugHandler := debug.New(core.I18n, core.Repository, core.DebugRecorder)
	{
		debugGroup.GET("automations", debugHandler.ListAutomations())
		debugGroup.GET("automations/:id/log", debugHandler.AutomationLog())
		debugGroup.GET("evaluations", debugHandler.Evaluations())
	}
}
