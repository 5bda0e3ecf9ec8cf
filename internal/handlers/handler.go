package handlers

import (
	"time"

	"paletten_hub/internal/logger"
	"paletten_hub/internal/metrics"
	"paletten_hub/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  *metrics.Metrics

	// default push interval of /ws
	streamInterval time.Duration
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{services: services, log: log, metrics: m, streamInterval: defaultInterval}
}

// SetStreamInterval changes the default /ws push interval, bounded by maxInterval.
func (h *Handler) SetStreamInterval(d time.Duration) {
	if d > 0 && d <= maxInterval {
		h.streamInterval = d
	}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	h.registerAPIRoutes(router)

	// live control state over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		h.registerLocationRoutes(api)
	}
}

func (h *Handler) registerLocationRoutes(api *gin.RouterGroup) {
	locations := api.Group("/locations/:location")
	{
		// Body example: {"desired_temperature":21}
		locations.PUT("/setpoint", h.setSetpoint)
		// Body example: {"enabled":false}
		locations.PUT("/auto", h.setAuto)
	}
}
