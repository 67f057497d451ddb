package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OutboxStats reports outbox message counts by status.
type OutboxStats interface {
	GetStats(ctx context.Context) (map[string]int, error)
}

type HealthHandler struct {
	outbox OutboxStats
}

func NewHealthHandler(outbox OutboxStats) *HealthHandler {
	return &HealthHandler{outbox: outbox}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Public Eye API Running")
}

// Health reports readiness; the outbox query doubles as a database check.
func (h *HealthHandler) Health(c *gin.Context) {
	stats, err := h.outbox.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "outbox": stats})
}
