package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mercado/internal/constants"
	"mercado/internal/logger"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrOutboxFull = errors.New("connection outbox full")
)

type ConnOptions struct {
	Buffer    int
	WriteWait time.Duration
	PongWait  time.Duration
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.Buffer <= 0 {
		o.Buffer = constants.DefaultConnectionBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = constants.DefaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = constants.DefaultPongWait
	}
	return o
}

// WSConn adapts a websocket to Conn. Frames are queued on a bounded outbox
// and written by a single goroutine; the server never expects client data.
type WSConn struct {
	id     string
	ws     *websocket.Conn
	opts   ConnOptions
	logger logger.Logger

	outbox chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func NewWSConn(ws *websocket.Conn, opts ConnOptions, log logger.Logger) *WSConn {
	opts = opts.withDefaults()
	return &WSConn{
		id:     uuid.New().String(),
		ws:     ws,
		opts:   opts,
		logger: log,
		outbox: make(chan []byte, opts.Buffer),
		done:   make(chan struct{}),
	}
}

func (c *WSConn) ID() string {
	return c.id
}

func (c *WSConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.outbox <- msg:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (c *WSConn) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *WSConn) Done() <-chan struct{} {
	return c.done
}

// WritePump drains the outbox until the connection closes. It also sends
// pings so half-open peers are detected by ReadPump's deadline.
func (c *WSConn) WritePump() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debugw("Write failed", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump blocks until the peer goes away. Inbound frames are discarded.
func (c *WSConn) ReadPump() {
	defer c.Close()

	c.ws.SetReadLimit(constants.DefaultMaxInboundMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("Unexpected close", "connection_id", c.id, "error", err)
			}
			return
		}
	}
}
