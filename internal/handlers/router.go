package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"biblio/internal/metrics"
)

type RouterConfig struct {
	CORSOrigin   string
	AuthDisabled bool
	// Gatherer backs /metrics; nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with recovery, request logging, CORS,
// /healthz and /metrics around the API routes.
func NewRouter(cfg RouterConfig, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	corsCfg := cors.DefaultConfig()
	if cfg.CORSOrigin == "" || cfg.CORSOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSOrigin}
		corsCfg.AllowCredentials = true
	}
	corsCfg.AddAllowHeaders("Authorization")
	corsCfg.AddExposeHeaders("Content-Disposition")
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}

	RegisterRoutes(r, svc, cfg.AuthDisabled, cfg.Logger)
	return r
}

// RequestLogger logs one line per request. Errors attached with c.Error are
// logged at error level.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			logger.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logger.Info("request", fields...)
	}
}
