package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chrisndirangu54/standstill/internal/config"
	"github.com/chrisndirangu54/standstill/internal/handler"
	"github.com/chrisndirangu54/standstill/internal/metrics"
	"github.com/chrisndirangu54/standstill/internal/middleware"
	"github.com/chrisndirangu54/standstill/internal/service"
)

// Deps are the components the router serves.
type Deps struct {
	Config  *config.Config
	Service *service.SegmentService
	Metrics *metrics.Collector
	Limiter *middleware.RateLimiter // nil disables rate limiting
	Logger  *zap.Logger
}

// SetupRouter builds the HTTP routes
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location, Retry-After")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "standstill is running",
		})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	segmentHandler := handler.NewSegmentHandler(d.Service, d.Config.MaxUploadBytes)
	runHandler := handler.NewRunHandler(d.Service, d.Config.MaxUploadBytes)

	api := r.Group("/api/v1")
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter))
	}
	if d.Config.AuthEnabled() {
		api.Use(middleware.JWTAuth([]byte(d.Config.JWTSecret)))
	}
	{
		api.POST("/segment", segmentHandler.Preview)

		runs := api.Group("/runs")
		{
			runs.POST("", runHandler.CreateRun)
			runs.GET("", runHandler.GetRuns)
			runs.GET("/:id", runHandler.GetRun)
			runs.DELETE("/:id", runHandler.DeleteRun)
			runs.GET("/:id/stops", runHandler.GetStops)
			runs.GET("/:id/routes", runHandler.GetRoutes)
			runs.GET("/:id/geojson", runHandler.GetGeoJSON)
			runs.GET("/:id/summary", runHandler.GetSummary)
		}
	}

	return r
}
