package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newSystemRouter(checks map[string]Pinger) *gin.Engine {
	h := NewSystemHandlers("1.2.3", []byte("console.log('hi')"), checks, zap.NewNop())
	r := gin.New()
	r.GET("/", h.Welcome)
	r.GET("/health", h.Health)
	r.GET("/tracker.js", h.Tracker)
	return r
}

func TestHealth(t *testing.T) {
	r := newSystemRouter(map[string]Pinger{"postgres": stubPinger{}, "clickhouse": stubPinger{}})

	w := send(r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok","clickhouse":"ok"}}`, w.Body.String())
}

func TestHealth_Degraded(t *testing.T) {
	r := newSystemRouter(map[string]Pinger{"postgres": stubPinger{}, "clickhouse": stubPinger{err: errors.New("down")}})

	w := send(r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"clickhouse":"unavailable"`)
}

func TestTracker(t *testing.T) {
	r := newSystemRouter(nil)

	w := send(r, http.MethodGet, "/tracker.js", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	assert.Equal(t, "console.log('hi')", w.Body.String())
}

func TestWelcome(t *testing.T) {
	r := newSystemRouter(nil)

	w := send(r, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
}
