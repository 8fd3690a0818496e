package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/radview/radview-backend/internal/handlers"
	"github.com/radview/radview-backend/internal/middleware"
	"github.com/radview/radview-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthMiddleware   *middleware.AuthMiddleware
	UploadHandler    *handlers.UploadHandler
	HierarchyHandler *handlers.HierarchyHandler
	InstanceHandler  *handlers.InstanceHandler
	AnalyzeHandler   *handlers.AnalyzeHandler
	EventsHandler    *handlers.EventsHandler
	HealthHandler    *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("radview-backend"))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			envutil.String("FRONTEND_ORIGIN", "http://localhost:3000"),
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthz", cfg.HealthHandler.Check)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	{
		api.POST("/uploads", cfg.UploadHandler.UploadBatch)

		api.GET("/patients", cfg.HierarchyHandler.ListPatients)
		api.GET("/patients/:id/studies", cfg.HierarchyHandler.ListStudies)
		api.GET("/studies/:id/series", cfg.HierarchyHandler.ListSeries)
		api.GET("/series/:id/instances", cfg.HierarchyHandler.ListInstances)

		api.GET("/instances/:id/url", cfg.InstanceHandler.SignedURL)
		api.DELETE("/instances/:id", cfg.InstanceHandler.Delete)
		api.POST("/instances/:id/analyze", cfg.AnalyzeHandler.Analyze)

		api.GET("/events", cfg.EventsHandler.Stream)
	}

	return router
}
