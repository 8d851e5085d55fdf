package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-service/internal/metrics"
)

// HealthCheck reports whether a dependency is ready to serve traffic.
type HealthCheck func(ctx context.Context) error

type RouterOptions struct {
	Environment    string
	Checks         map[string]HealthCheck
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	Log            zerolog.Logger
}

func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	if opts.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(opts.Log))
	router.Use(requestMetrics(opts.Metrics))

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		failed := gin.H{}
		for name, check := range opts.Checks {
			if err := check(ctx); err != nil {
				opts.Log.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
				failed[name] = "unhealthy"
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	handler.Register(router)

	return router
}
