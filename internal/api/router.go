package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter setup routes and apply global middleware
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(h.Logger.Writer()), gin.Recovery())
	r.Use(CORSMiddleware(h.Config.AllowedOrigins))
	if h.Metrics != nil {
		r.Use(MetricsMiddleware(h.Metrics))
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	r.GET("/", h.Root)

	api := r.Group("/api")
	api.GET("/test", h.Test)
	api.GET("/health", h.Health)

	protected := api.Group("")
	if h.Config.JWTSecret != "" {
		protected.Use(AuthMiddleware([]byte(h.Config.JWTSecret)))
	}
	protected.GET("/info", h.Info)
	protected.GET("/formats", h.Formats)
	protected.GET("/download", h.StartDownload)
	protected.GET("/download/:id/status", h.DownloadStatus)
	protected.GET("/download/:id/file", h.DownloadFile)
	protected.GET("/events/:id", h.Events)
	protected.GET("/direct", h.Direct)
	protected.GET("/cleanup", h.Cleanup)

	return r
}
