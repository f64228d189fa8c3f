package host

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/bridge"
	"github.com/sirosfoundation/go-wsbridge/pkg/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Plugin.ListenHost = "127.0.0.1"
	cfg.Tick.DemoPort = 0
	cfg.Tick.Interval = 5 * time.Millisecond
	return cfg
}

// runHost starts h and its update loop; the returned func stops both
func runHost(t *testing.T, h *Host) func() {
	t.Helper()
	require.NoError(t, h.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	return func() {
		cancel()
		require.NoError(t, <-done)
		require.NoError(t, h.Shutdown(context.Background()))
	}
}

func TestHost_Echo(t *testing.T) {
	h := New(testConfig(), zap.NewNop())
	stop := runHost(t, h)
	defer stop()

	addr, err := h.EchoAddr()
	require.NoError(t, err)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	mt, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0xfe}))
	mt, data, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, []byte{0xff, 0xfe}, data)
}

func TestHost_HTTP(t *testing.T) {
	h := New(testConfig(), zap.NewNop())
	stop := runHost(t, h)
	defer stop()

	addr, err := h.EchoAddr()
	require.NoError(t, err)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, echoIndex, string(body))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Server"), "CoppeliaSim/"))

	resp, err = client.Get("http://" + addr + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHost_ShutdownReleasesServers(t *testing.T) {
	h := New(testConfig(), zap.NewNop())
	stop := runHost(t, h)

	addr, err := h.EchoAddr()
	require.NoError(t, err)
	stop()

	assert.Empty(t, h.bridge.Servers(EchoScript))
	_, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	assert.Error(t, err)
}

func TestHost_StartBindError(t *testing.T) {
	first := New(testConfig(), zap.NewNop())
	require.NoError(t, first.Start())
	defer func() { _ = first.Shutdown(context.Background()) }()

	addr, err := first.EchoAddr()
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Tick.DemoPort, err = strconv.Atoi(port)
	require.NoError(t, err)
	second := New(cfg, zap.NewNop())
	err = second.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, bridge.ErrBind)
}

func TestHost_MetricsRouter(t *testing.T) {
	h := New(testConfig(), zap.NewNop())
	require.NoError(t, h.Start())
	defer func() { _ = h.Shutdown(context.Background()) }()
	router := h.MetricsRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wsbridge_servers_active 1")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
