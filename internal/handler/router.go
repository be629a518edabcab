// Package handler implements the REST surface of spec §3/§6: channels,
// the design catalog, the job queue, discovered channels, and runtime
// settings, plus process health/info. Swagger docs are generated into
// internal/handler/docs by `swag init` as part of the build and are not
// checked in.
package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/polyforge/polyforge/internal/config"
	"github.com/polyforge/polyforge/internal/discovery"
	"github.com/polyforge/polyforge/internal/settings"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Deps collects every dependency the router needs to wire its handlers.
type Deps struct {
	Config     *config.Config
	Channels   interfaces.ChannelRepository
	Designs    interfaces.DesignRepository
	Queue      interfaces.JobQueue
	Settings   *settings.Service
	Discovered interfaces.DiscoveredChannelRepository
	Discovery  *discovery.Service
}

// NewRouter builds the gin engine: CORS, swagger UI, and the versioned
// API group backed by Deps.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	system := NewSystemHandler(deps.Config, deps.Queue)
	r.GET("/health", system.GetHealth)

	api := r.Group("/api/v1")
	{
		api.GET("/system/info", system.GetSystemInfo)

		channels := NewChannelHandler(deps.Channels)
		api.GET("/channels", channels.ListChannels)
		api.GET("/channels/:id", channels.GetChannel)
		api.PATCH("/channels/:id", channels.UpdateChannel)

		designs := NewDesignHandler(deps.Designs, deps.Queue)
		api.GET("/designs", designs.ListDesigns)
		api.GET("/designs/:id", designs.GetDesign)
		api.DELETE("/designs/:id", designs.DeleteDesign)
		api.POST("/designs/:id/download", designs.RequeueDownload)
		api.POST("/designs/:id/render", designs.RequeueRender)

		jobs := NewJobHandler(deps.Queue)
		api.GET("/jobs", jobs.ListJobsForDesign)
		api.GET("/jobs/stats", jobs.GetQueueStats)
		api.GET("/jobs/:id", jobs.GetJob)
		api.POST("/jobs/:id/cancel", jobs.CancelJob)
		api.PATCH("/jobs/:id/priority", jobs.UpdateJobPriority)

		discovered := NewDiscoveredChannelHandler(deps.Discovered, deps.Discovery)
		api.GET("/discovered-channels", discovered.ListDiscoveredChannels)
		api.GET("/discovered-channels/stats", discovered.GetDiscoveredChannelStats)
		api.GET("/discovered-channels/:id", discovered.GetDiscoveredChannel)
		api.DELETE("/discovered-channels/:id", discovered.DeleteDiscoveredChannel)
		api.POST("/discovered-channels/:id/add", discovered.AddDiscoveredChannel)

		settingsHandler := NewSettingsHandler(deps.Settings)
		api.GET("/settings", settingsHandler.GetAllSettings)
		api.POST("/settings/reset", settingsHandler.ResetSettings)
		api.GET("/settings/:key", settingsHandler.GetSetting)
		api.PUT("/settings/:key", settingsHandler.SetSetting)
		api.DELETE("/settings/:key", settingsHandler.DeleteSetting)
	}

	return r
}
