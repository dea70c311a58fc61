package httpserver

import (
	"context"
	"net/http"
	"time"

	"habittracker/internal/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency /readyz must reach, such as the Postgres pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(
	authHandler *handler.AuthHandler,
	habitHandler *handler.HabitHandler,
	jwtSecret string,
	logger *zap.Logger,
	db Pinger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	// Protected
	habits := r.Group("/habits")
	habits.Use(AuthMiddleware(jwtSecret))
	{
		habits.GET("", habitHandler.List)
		habits.POST("", habitHandler.Create)
		habits.GET("/:id", habitHandler.Get)
		habits.PUT("/:id", habitHandler.Update)
		habits.DELETE("/:id", habitHandler.Delete)
		habits.POST("/:id/track", habitHandler.Track)
		habits.GET("/:id/streak", habitHandler.Streak)
		habits.GET("/:id/progress", habitHandler.Progress)
	}

	return r
}
