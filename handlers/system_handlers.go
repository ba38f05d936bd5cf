package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SystemHandlers struct {
	version   string
	startedAt time.Time
	tracker   []byte
	checks    map[string]Pinger
	log       *zap.Logger
}

// NewSystemHandlers takes the named dependencies probed by Health and the
// tracker script served by Tracker.
func NewSystemHandlers(version string, tracker []byte, checks map[string]Pinger, log *zap.Logger) *SystemHandlers {
	return &SystemHandlers{
		version:   version,
		startedAt: time.Now().UTC(),
		tracker:   tracker,
		checks:    checks,
		log:       log,
	}
}

func (h *SystemHandlers) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":    "Cloudboard analytics API",
		"version":    h.version,
		"started_at": h.startedAt,
	})
}

func (h *SystemHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

func (h *SystemHandlers) Tracker(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", h.tracker)
}
