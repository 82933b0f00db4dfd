package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercado/internal/config"
	"mercado/internal/logger"
	"mercado/internal/realtime"
	pkgerrors "mercado/pkg/errors"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames []string
}

func (b *recordingBroadcaster) Broadcast(msg []byte) realtime.BroadcastResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, string(msg))
	return realtime.BroadcastResult{Attempted: 1, Delivered: 1}
}

func (b *recordingBroadcaster) Frames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.frames...)
}

func startRelay(t *testing.T, b Broadcaster, size int) *Relay {
	t.Helper()
	relay := NewRelay(b, size, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return relay
}

func TestRelayDispatchesInOrder(t *testing.T) {
	b := &recordingBroadcaster{}
	relay := startRelay(t, b, 8)

	require.NoError(t, relay.Notify(context.Background(), NewReportEvent(ReportSignal{ID: 1, Producto: "A"})))
	require.NoError(t, relay.Notify(context.Background(), NewReportEvent(ReportSignal{ID: 2, Producto: "B"})))

	require.Eventually(t, func() bool { return len(b.Frames()) == 2 }, time.Second, 5*time.Millisecond)
	frames := b.Frames()
	assert.Contains(t, frames[0], "#1: A.")
	assert.Contains(t, frames[1], "#2: B.")
}

func TestRelayDropsWhenQueueFull(t *testing.T) {
	relay := NewRelay(&recordingBroadcaster{}, 1, logger.NopLogger())

	require.NoError(t, relay.Notify(context.Background(), NewReportEvent(ReportSignal{ID: 1})))
	err := relay.Notify(context.Background(), NewReportEvent(ReportSignal{ID: 2}))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsServiceUnavailable(err))
}

func TestRelayBroadcastsToRegistry(t *testing.T) {
	reg := realtime.NewRegistry(logger.NopLogger())
	conn := &captureConn{}
	reg.Register(conn)
	relay := startRelay(t, reg, 4)

	ev, err := NewOfferEvent(json.RawMessage(`{"supermercado":"Tienda A","producto":"Leche","precio":25.5}`))
	require.NoError(t, err)
	require.NoError(t, relay.Notify(context.Background(), ev))

	require.Eventually(t, func() bool { return conn.count() == 1 }, time.Second, 5*time.Millisecond)
}

type captureConn struct {
	mu sync.Mutex
	n  int
}

func (c *captureConn) ID() string { return "capture" }

func (c *captureConn) Send([]byte) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *captureConn) Close() error { return nil }

func (c *captureConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestHandleKafka(t *testing.T) {
	b := &recordingBroadcaster{}
	relay := startRelay(t, b, 4)

	value, err := EncodeEvent(NewReportEvent(ReportSignal{ID: 9, Producto: "Arroz"}))
	require.NoError(t, err)
	require.NoError(t, relay.HandleKafka(context.Background(), nil, value))

	err = relay.HandleKafka(context.Background(), nil, []byte(`{"tipo":"x"}`))
	assert.False(t, pkgerrors.IsRetryable(err))

	require.Eventually(t, func() bool { return len(b.Frames()) == 1 }, time.Second, 5*time.Millisecond)
}

func newRouter(relay Notifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(relay, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func TestNotifyOfferHandler(t *testing.T) {
	b := &recordingBroadcaster{}
	router := newRouter(startRelay(t, b, 4))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notificaciones",
		strings.NewReader(`{"supermercado":"Tienda A","producto":"Leche","precio":25.5}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool { return len(b.Frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, b.Frames()[0], "¡OFERTA! Tienda A tiene Leche por $25.5.")
}

func TestNotifyOfferHandlerMissingProduct(t *testing.T) {
	router := newRouter(NewRelay(&recordingBroadcaster{}, 1, logger.NopLogger()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notificaciones", strings.NewReader(`{"precio":1}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Datos de oferta faltantes.", body["error"])
}

func TestNotifyReportHandler(t *testing.T) {
	b := &recordingBroadcaster{}
	router := newRouter(startRelay(t, b, 4))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reportes", strings.NewReader(`{"id":4,"producto":"Huevo"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool { return len(b.Frames()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHTTPClientPostsToGateway(t *testing.T) {
	var got ReportSignal
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reportes", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewHTTPClient(config.NotifierConfig{GatewayURL: srv.URL + "/"})
	require.NoError(t, client.NotifyReport(context.Background(), ReportSignal{ID: 5, Producto: "Leche"}))
	assert.Equal(t, ReportSignal{ID: 5, Producto: "Leche"}, got)
}

func TestHTTPClientReportsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(config.NotifierConfig{GatewayURL: srv.URL})
	assert.Error(t, client.NotifyReport(context.Background(), ReportSignal{ID: 5}))
}

type fakeKafka struct {
	topic string
	key   string
	value []byte
}

func (f *fakeKafka) Publish(ctx context.Context, topic string, key, value []byte) error {
	f.topic, f.key, f.value = topic, string(key), value
	return nil
}

func TestKafkaClient(t *testing.T) {
	producer := &fakeKafka{}
	client := NewKafkaClient(producer, "notificaciones")

	require.NoError(t, client.NotifyReport(context.Background(), ReportSignal{ID: 12, Producto: "Pan"}))

	assert.Equal(t, "notificaciones", producer.topic)
	assert.Equal(t, "12", producer.key)
	ev, err := DecodeEvent(producer.value)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo reporte de inconsistencia #12: Pan.", ev.Message)
}
