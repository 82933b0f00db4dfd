package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercado/internal/config"
	"mercado/internal/logger"
)

func newTestServer(t *testing.T, cfg config.GatewayConfig) (*Registry, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := NewRegistry(logger.NopLogger())
	router := gin.New()
	NewHandler(reg, cfg, logger.NopLogger()).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

func TestHandlerRegistersAndDelivers(t *testing.T) {
	reg, srv := newTestServer(t, config.GatewayConfig{})

	ws := dial(t, srv)
	defer ws.Close()

	require.Eventually(t, func() bool { return reg.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	result := reg.Broadcast([]byte(`{"tipo":"nueva_oferta"}`))
	require.Equal(t, 1, result.Delivered)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.JSONEq(t, `{"tipo":"nueva_oferta"}`, string(data))
}

func TestHandlerUnregistersOnDisconnect(t *testing.T) {
	reg, srv := newTestServer(t, config.GatewayConfig{})

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return reg.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()

	assert.Eventually(t, func() bool { return reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://mercado.example/"})

	allowed := httptest.NewRequest(http.MethodGet, "/", nil)
	allowed.Header.Set("Origin", "https://mercado.example")
	assert.True(t, check(allowed))

	denied := httptest.NewRequest(http.MethodGet, "/", nil)
	denied.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(denied))

	assert.True(t, originChecker(nil)(denied))
	assert.True(t, originChecker([]string{"*"})(denied))
}

func TestWSConnSendAfterClose(t *testing.T) {
	reg, srv := newTestServer(t, config.GatewayConfig{})
	ws := dial(t, srv)
	defer ws.Close()
	require.Eventually(t, func() bool { return reg.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn := reg.snapshot()[0].(*WSConn)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send([]byte("x")), ErrConnClosed)
}
