package engine_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/affirmai/engine/api/engine-api/config"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/connectors"
)

type HealthApi struct {
	cfg    *config.AppConfig
	logger commons.Logger
	sql    connectors.SQLConnector
	redis  connectors.RedisConnector
}

// NewHealthApi takes an optional redis connector; nil skips its check.
func NewHealthApi(cfg *config.AppConfig, logger commons.Logger, sql connectors.SQLConnector, redis connectors.RedisConnector) *HealthApi {
	return &HealthApi{cfg: cfg, logger: logger, sql: sql, redis: redis}
}

func (h *HealthApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true, "service": h.cfg.Name, "version": h.cfg.Version})
}

func (h *HealthApi) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{"database": h.sql.IsConnected(ctx)}
	ready := checks["database"].(bool)
	if h.redis != nil {
		ok := h.redis.IsConnected(ctx)
		checks["redis"] = ok
		ready = ready && ok
	}
	status := http.StatusOK
	if !ready {
		h.logger.Warnf("readiness check failed: %v", checks)
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
