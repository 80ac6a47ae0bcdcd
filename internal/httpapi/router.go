package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/config"
	"github.com/suPer8Hu/ai-studio/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-studio/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	authGroup.GET("/models", h.ListModels)

	// chat
	authGroup.POST("/chat", h.Chat)
	authGroup.POST("/chat/regenerate", h.Regenerate)
	authGroup.POST("/chat/jobs", h.EnqueueChat)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)

	// api keys
	authGroup.GET("/api-keys", h.ListAPIKeys)
	authGroup.POST("/api-keys", h.SaveAPIKey)
	authGroup.DELETE("/api-keys", h.DeleteAPIKey)

	// projects and files
	authGroup.GET("/projects", h.ListProjects)
	authGroup.POST("/projects", h.CreateProject)
	authGroup.GET("/projects/:id", h.GetProject)
	authGroup.PATCH("/projects/:id", h.UpdateProject)
	authGroup.DELETE("/projects/:id", h.DeleteProject)
	authGroup.GET("/projects/:id/messages", h.ListMessages)
	authGroup.POST("/files", h.CreateFile)
	authGroup.PATCH("/files/:id", h.UpdateFile)
	authGroup.DELETE("/files/:id", h.DeleteFile)

	// github, rate limited per user
	limiter := middleware.NewRateLimiter(cfg.GitHubRatePerMinute, 5)
	authGroup.POST("/projects/:id/import", limiter.Middleware(), h.ImportProjectFiles)
	gh := authGroup.Group("/github")
	gh.Use(limiter.Middleware())
	gh.GET("/repo", h.GitHubRepo)
	gh.GET("/contents", h.GitHubContents)
	gh.GET("/file", h.GitHubFile)

	return r
}
