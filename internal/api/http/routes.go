package http

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/production-tracking/pkg/contracts/openapi"
	"github.com/wms-platform/production-tracking/pkg/errors"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	"github.com/wms-platform/production-tracking/pkg/middleware"
)

// RouterConfig carries the optional parts of the router
type RouterConfig struct {
	ServiceName string
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	// Contract enables per-request OpenAPI validation when set
	Contract *openapi.Validator
	// Ready backs the readiness probe; nil means always ready
	Ready func() error
	// AllowedOrigins restricts CORS; empty allows any origin
	AllowedOrigins []string
}

// NewRouter builds the gin engine with the standard middleware chain,
// health and metrics endpoints and the API routes
func NewRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	mwConfig := middleware.DefaultConfig(cfg.ServiceName, cfg.Logger.Logger)
	mwConfig.ErrorMappers = []errors.Mapper{MapDomainError}
	mwConfig.AllowedOrigins = cfg.AllowedOrigins
	middleware.Setup(router, mwConfig)

	if cfg.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(cfg.Metrics))
		router.GET("/metrics", middleware.MetricsEndpoint(cfg.Metrics))
	}
	if cfg.Contract != nil {
		router.Use(ContractValidation(cfg.Contract))
	}

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())
	router.HandleMethodNotAllowed = true

	ready := cfg.Ready
	if ready == nil {
		ready = func() error { return nil }
	}
	router.GET("/health", middleware.HealthCheck(cfg.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(cfg.ServiceName, ready))

	SetupRoutes(router, h)
	return router
}

// SetupRoutes configures all HTTP routes for the tracking API
func SetupRoutes(router *gin.Engine, h *Handlers) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/pipeline", h.GetPipeline)

		items := v1.Group("/items")
		{
			items.POST("", h.CreateItem)
			items.GET("", h.SearchHistory)
			items.GET("/search", h.SearchText)
			items.GET("/:itemId", h.GetItem)
			items.POST("/:itemId/advance", h.AdvanceItem)
			items.POST("/:itemId/inspections/start", h.StartInspection)
			items.POST("/:itemId/inspections/resolve", h.ResolveInspection)
			items.POST("/:itemId/inspections/decision", h.DecideRejection)
			items.POST("/:itemId/delay-check", h.DelayCheck)
		}

		v1.GET("/board", h.GetBoard)
		v1.GET("/dashboard", h.GetDashboard)

		requests := v1.Group("/warehouse-requests")
		{
			requests.POST("", h.CreateWarehouseRequest)
			requests.GET("", h.ListWarehouseRequests)
			requests.POST("/:requestId/complete", h.CompleteWarehouseRequest)
		}

		displays := v1.Group("/displays")
		{
			displays.GET("/:sessionId", h.GetDisplay)
			displays.PUT("/:sessionId", h.ConfigureDisplay)
			displays.POST("/:sessionId/pause", h.PauseDisplay)
			displays.POST("/:sessionId/resume", h.ResumeDisplay)
			displays.GET("/:sessionId/frame", h.GetDisplayFrame)
		}
	}
}
