package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	brokerUp := true
	registry := NewCheckerRegistry()
	registry.Register(NewCheckFunc("rabbitmq", func(context.Context) error {
		if brokerUp {
			return nil
		}
		return errors.New("connection closed")
	}))

	router := gin.New()
	router.GET("/health", registry.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	brokerUp = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, "connection closed", body.Checks["rabbitmq"].Message)
}
