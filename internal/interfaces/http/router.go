package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/http/handlers"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/http/middleware"
)

// MetricsHandler exposes a scrape endpoint. The prometheus collector
// satisfies it.
type MetricsHandler interface {
	Handler() http.Handler
}

type RouterConfig struct {
	Mode          string // gin mode: "debug" | "release" | "test"
	HealthHandler *handlers.HealthHandler
	Metrics       MetricsHandler
	MetricsPath   string
	Logger        logging.Logger
}

// NewRouter builds the ops router: liveness, readiness and the metrics scrape
// endpoint. Nil components are simply not mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.Metrics.Handler()))
	}

	return r
}
