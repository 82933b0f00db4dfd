package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"mercado/internal/config"
)

func TestMiddlewareLimitsPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := New(config.RateLimitConfig{RPS: 0.001, Burst: 2})
	router := gin.New()
	router.Use(limiter.Middleware())
	router.POST("/api/reportar", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/reportar", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusAccepted, send("10.0.0.1"))
	assert.Equal(t, http.StatusAccepted, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusAccepted, send("10.0.0.2"))
}

func TestEvictDropsIdleVisitors(t *testing.T) {
	limiter := New(config.RateLimitConfig{RPS: 1, Burst: 1, MaxAge: time.Minute})
	limiter.get("10.0.0.1")

	limiter.evict(time.Now().Add(2 * time.Minute))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.visitors)
}
