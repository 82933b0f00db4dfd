package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mercado/internal/config"
	"mercado/internal/logger"
	"mercado/pkg/health"
)

func TestRouterServesOperationalEndpoints(t *testing.T) {
	base := NewBase(&config.Config{}, logger.NopLogger(), "test-service")
	base.Health.Register(health.NewCheckFunc("rabbitmq", func(context.Context) error {
		return errors.New("connection closed")
	}))
	router := base.NewRouter(false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "rabbitmq")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func TestServeRequiresServer(t *testing.T) {
	base := NewBase(&config.Config{}, logger.NopLogger(), "test-service")
	assert.Error(t, base.Serve(context.Background()))
	assert.NoError(t, base.Shutdown(context.Background(), nil))
}
