package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger es lo mínimo que necesita el health check de la base.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responde los endpoints de estado.
type HealthHandler struct {
	logger  *zap.Logger
	service string
	db      Pinger
}

func NewHealthHandler(logger *zap.Logger, serviceName string, db Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		service: serviceName,
		db:      db,
	}
}

// Root maneja GET /.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Healthz maneja GET /healthz.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}
