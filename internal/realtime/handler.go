package realtime

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mercado/internal/config"
	"mercado/internal/logger"
)

type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	opts     ConnOptions
	logger   logger.Logger
}

func NewHandler(registry *Registry, cfg config.GatewayConfig, log logger.Logger) *Handler {
	h := &Handler{
		registry: registry,
		opts: ConnOptions{
			Buffer:    cfg.ConnectionBuffer,
			WriteWait: cfg.WriteWait,
			PongWait:  cfg.PongWait,
		},
		logger: log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Connect)
}

// Connect upgrades the request and keeps the connection registered until
// the peer disconnects or a send to it fails.
func (h *Handler) Connect(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "error", err, "remote_addr", c.ClientIP())
		return
	}

	conn := NewWSConn(ws, h.opts, h.logger)
	h.registry.Register(conn)

	go conn.WritePump()
	go func() {
		conn.ReadPump()
		h.registry.Unregister(conn)
	}()
}
