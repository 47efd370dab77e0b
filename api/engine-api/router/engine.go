package engine_routers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	engineApi "github.com/affirmai/engine/api/engine-api/api"
	"github.com/affirmai/engine/api/engine-api/config"
	"github.com/affirmai/engine/pkg/commons"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, hcApi *engineApi.HealthApi) {
	logger.Info("Internal HealthCheckRoutes and Connectors added to engine.")
	apiv1 := engine.Group("")
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
	}
}

func MetricsRoutes(engine *gin.Engine, logger commons.Logger, gatherer prometheus.Gatherer) {
	logger.Info("Internal MetricsRoutes added to engine.")
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func EngineApiRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, api *engineApi.EngineApi) {
	logger.Info("Internal EngineApiRoutes added to engine.")
	apiv1 := engine.Group("v1")
	{
		apiv1.GET("/state", api.GetState)
		apiv1.GET("/state/stream", api.StreamState)

		apiv1.POST("/recordings/stop", api.StopRecording)
		apiv1.POST("/recordings/:target/start", api.StartRecording)
		apiv1.POST("/recordings/:target/retry", api.RetryProcessing)
		apiv1.POST("/recordings/:target/transcription", api.RequestTranscription)
		apiv1.DELETE("/recordings/:target", api.DeleteRecording)

		apiv1.POST("/playback/:target/play", api.Play)
		apiv1.POST("/playback/pause", api.Pause)
		apiv1.POST("/playback/resume", api.Resume)
		apiv1.POST("/playback/stop", api.StopPlayback)

		apiv1.GET("/scripts/:id", api.GetScript)
		apiv1.PUT("/scripts/:id", api.SaveScript)

		apiv1.GET("/recovery", api.GetRecovery)
		apiv1.POST("/recovery", api.ResolveRecovery)
	}

	// the platform audio bridge
	system := engine.Group("v1/system")
	{
		system.POST("/interruptions", api.Interruption)
		system.POST("/route", api.Route)
		system.POST("/permission", api.Permission)
	}
	bridge := engine.Group("v1/bridge")
	{
		bridge.GET("/capture", api.CaptureFrames)
		bridge.GET("/playback", api.PlaybackCommands)
	}
}
