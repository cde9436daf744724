package server

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlverezYari/suscam/pkg/camera"
)

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestQueries(t *testing.T) {
	srv := New(Config{}, zap.NewNop().Sugar())
	conn := dial(t, srv)

	send(t, conn, "get_limits")
	var limits camera.Bounds
	readJSON(t, conn, &limits)
	assert.Equal(t, camera.DefaultBounds, limits)

	send(t, conn, "get_pos")
	var pos camera.Position
	readJSON(t, conn, &pos)
	assert.Equal(t, camera.Position{X: 90, Y: 45}, pos)

	send(t, conn, "client_count")
	var count clientCount
	readJSON(t, conn, &count)
	assert.Equal(t, 1, count.Clients)
}

func TestMovementClampsAndBroadcasts(t *testing.T) {
	srv := New(Config{Step: 50}, zap.NewNop().Sugar())
	conn := dial(t, srv)

	for i := 0; i < 3; i++ {
		send(t, conn, "right")
		var status Status
		readJSON(t, conn, &status)
		assert.Equal(t, "status", status.Event)
	}
	assert.Equal(t, camera.Position{X: 180, Y: 45}, srv.Position())

	send(t, conn, `{"x": -20, "y": 60}`)
	var status Status
	readJSON(t, conn, &status)
	assert.Equal(t, camera.Position{X: 0, Y: 60}, status.Position)

	send(t, conn, "light_on")
	readJSON(t, conn, &status)
	assert.True(t, status.Light)
	assert.True(t, srv.Light())

	send(t, conn, "center")
	readJSON(t, conn, &status)
	assert.Equal(t, camera.Position{X: 90, Y: 45}, status.Position)

	send(t, conn, "wiggle")
	var reply map[string]string
	readJSON(t, conn, &reply)
	assert.Equal(t, "unknown command", reply["error"])
}

func TestMuteSuppressesReplies(t *testing.T) {
	srv := New(Config{}, zap.NewNop().Sugar())
	conn := dial(t, srv)
	srv.SetMute(true)

	send(t, conn, "get_pos")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRenderFrame(t *testing.T) {
	srv := New(Config{Width: 64, Height: 48}, zap.NewNop().Sugar())
	data, err := srv.RenderFrame()
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}
