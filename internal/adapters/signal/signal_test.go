package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/domain"
)

func startServer(t *testing.T, reg *app.Registry, room *domain.Room) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := NewStatusWSController(reg, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleStatus(ctx, c, room)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestStatusFeedSendsStoredStatusFirst(t *testing.T) {
	reg := app.NewRegistry()
	checked := time.Unix(1700000000, 0)
	room := &domain.Room{ID: "room-1", Status: &domain.MeetingStatus{Running: true, CheckedAt: checked}}

	ws := startServer(t, reg, room)

	msg := readJSON(t, ws)
	assert.Equal(t, "meeting_status", msg["type"])
	assert.Equal(t, "room-1", msg["room"])
	assert.Equal(t, true, msg["running"])
	assert.Equal(t, float64(1700000000), msg["checked_at"])
}

func TestStatusFeedPushesAndAnswersPing(t *testing.T) {
	reg := app.NewRegistry()
	room := &domain.Room{ID: "room-1"}
	ws := startServer(t, reg, room)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readJSON(t, ws)["type"])

	require.Eventually(t, func() bool { return len(reg.SubscribersOf(room.ID)) == 1 }, time.Second, 10*time.Millisecond)
	reg.PublishStatus(room.ID, domain.MeetingStatus{Running: false, CheckedAt: time.Now()})

	msg := readJSON(t, ws)
	assert.Equal(t, "meeting_status", msg["type"])
	assert.Equal(t, false, msg["running"])
}

func TestStatusFeedRejectsUnknownMessages(t *testing.T) {
	ws := startServer(t, app.NewRegistry(), &domain.Room{ID: "room-1"})

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer"}`)))
	msg := readJSON(t, ws)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "unknown_type", msg["error"])
}

func TestStatusFeedUnbindsOnClose(t *testing.T) {
	reg := app.NewRegistry()
	room := &domain.Room{ID: "room-1"}
	ws := startServer(t, reg, room)

	require.Eventually(t, func() bool { return len(reg.SubscribersOf(room.ID)) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return len(reg.SubscribersOf(room.ID)) == 0 }, 3*time.Second, 10*time.Millisecond)
}
